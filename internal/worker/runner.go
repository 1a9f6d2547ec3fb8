package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/datapilot-io/datapilot/internal/config"
	mq "github.com/datapilot-io/datapilot/internal/infra/queue"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// Consumer delivers raw job announcements. *mq.Consumer satisfies it.
type Consumer interface {
	Handle(ctx context.Context, handler func(context.Context, []byte) error) error
}

// Runner drives pending jobs to a terminal state. Job ids arrive from the
// broker and from a periodic poll of the store, so a lost message only
// delays a job.
type Runner struct {
	jobs         service.JobService
	processors   map[string]Processor
	consumer     Consumer
	log          *zap.Logger
	pollInterval time.Duration
	pollBatch    int
}

// NewRunner builds a runner. consumer may be nil, in which case only the poller runs.
func NewRunner(jobs service.JobService, processors map[string]Processor, consumer Consumer, log *zap.Logger, cfg *config.Config) *Runner {
	interval := cfg.Jobs.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	batch := cfg.Jobs.PollBatch
	if batch <= 0 {
		batch = 10
	}
	return &Runner{
		jobs:         jobs,
		processors:   processors,
		consumer:     consumer,
		log:          log,
		pollInterval: interval,
		pollBatch:    batch,
	}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if r.consumer != nil {
		g.Go(func() error {
			err := r.consumer.Handle(ctx, r.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error { return r.poll(ctx) })
	return g.Wait()
}

// HandleMessage executes the job announced in body. A returned error requeues the message.
func (r *Runner) HandleMessage(ctx context.Context, body []byte) error {
	var msg mq.JobMessage
	if err := sonic.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
		// redelivery cannot fix a malformed body
		r.log.Warn("drop malformed job message", zap.ByteString("body", body), zap.Error(err))
		return nil
	}
	return r.Execute(ctx, msg.JobID)
}

// Execute claims job id and runs its processor. A job already claimed or
// finished elsewhere is skipped without error.
func (r *Runner) Execute(ctx context.Context, id string) error {
	j, err := r.jobs.UpdateStatus(ctx, service.UpdateJobStatusInput{ID: id, Status: model.JobStatusProcessing})
	switch {
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrTransitionConflict):
		r.log.Debug("job already claimed", zap.String("job_id", id))
		return nil
	case errors.Is(err, service.ErrJobNotFound):
		r.log.Warn("announced job not found", zap.String("job_id", id))
		return nil
	case err != nil:
		return fmt.Errorf("claim job %s: %w", id, err)
	}

	start := time.Now()
	result, perr := r.process(ctx, j)

	final := service.UpdateJobStatusInput{ID: j.ID}
	if perr != nil {
		final.Status = model.JobStatusFailed
		final.Error = failureMessage(perr)
	} else {
		final.Status = model.JobStatusCompleted
		final.Result = result
	}

	// the claim is ours, finish it even when shutting down
	if _, err := r.jobs.UpdateStatus(context.WithoutCancel(ctx), final); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			// swept while running
			r.log.Warn("job finished after being swept", zap.String("job_id", j.ID))
			return nil
		}
		return fmt.Errorf("finish job %s: %w", j.ID, err)
	}

	fields := []zap.Field{
		zap.String("job_id", j.ID),
		zap.String("type", j.Type),
		zap.String("status", string(final.Status)),
		zap.Duration("took", time.Since(start)),
	}
	if perr != nil {
		r.log.Warn("job failed", append(fields, zap.Error(perr))...)
	} else {
		r.log.Info("job completed", fields...)
	}
	return nil
}

func (r *Runner) process(ctx context.Context, j *model.Job) (out datatypes.JSON, err error) {
	p, ok := r.processors[j.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProcessor, j.Type)
	}

	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("processor panic: %v", rec)
		}
	}()

	v, err := p.Process(ctx, j)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return datatypes.JSON(b), nil
}

func failureMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "job failed"
	}
	return msg
}

// PollOnce executes up to one batch of pending jobs and reports how many it saw.
func (r *Runner) PollOnce(ctx context.Context) (int, error) {
	pending, err := r.jobs.ListPending(ctx, r.pollBatch)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, j := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := r.Execute(ctx, j.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return len(pending), errors.Join(errs...)
}

func (r *Runner) poll(ctx context.Context) error {
	for {
		n, err := r.PollOnce(ctx)
		if err != nil {
			r.log.Error("poll pending jobs", zap.Error(err))
		}

		// a full clean batch means more backlog, go again at once
		wait := r.pollInterval
		if err == nil && n >= r.pollBatch {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
