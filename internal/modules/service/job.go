package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/infra/cache"
	mq "github.com/datapilot-io/datapilot/internal/infra/queue"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxCASAttempts bounds how often UpdateStatus re-reads a job whose status
// moved underneath it.
const maxCASAttempts = 3

const sweepBatch = 100

// Publisher is the subset of *mq.Publisher the job service needs.
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error
}

type JobService interface {
	Create(ctx context.Context, in CreateJobInput) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, in UpdateJobStatusInput) (*model.Job, error)
	ListPending(ctx context.Context, limit int) ([]*model.Job, error)
	// SweepStuck fails every job that has been processing longer than olderThan.
	SweepStuck(ctx context.Context, olderThan time.Duration) (int, error)
	// Announce mirrors j to the cache and notifies workers. Failures are logged only.
	Announce(ctx context.Context, j *model.Job)
}

type jobService struct {
	r     repo.JobRepo
	cache cache.JobCache
	pub   Publisher
	audit AuditService
	log   *zap.Logger
	cfg   *config.Config
}

// NewJobService wires the job store. jobCache and pub may be nil.
func NewJobService(r repo.JobRepo, jobCache cache.JobCache, pub Publisher, audit AuditService, log *zap.Logger, cfg *config.Config) JobService {
	return &jobService{r: r, cache: jobCache, pub: pub, audit: audit, log: log, cfg: cfg}
}

type CreateJobInput struct {
	Type   string
	Data   datatypes.JSON
	UserID *int64
}

// NewPendingJob builds an unsaved pending job with a fresh id.
func NewPendingJob(jobType string, data datatypes.JSON, userID *int64) *model.Job {
	return &model.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      data,
		Status:    model.JobStatusPending,
		CreatedBy: userID,
	}
}

func (s *jobService) Create(ctx context.Context, in CreateJobInput) (*model.Job, error) {
	jobType := strings.TrimSpace(in.Type)
	if jobType == "" {
		return nil, ErrJobTypeRequired
	}

	j := NewPendingJob(jobType, in.Data, in.UserID)
	if err := s.r.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.Announce(ctx, j)
	s.audit.Append(ctx, AuditEntry{
		UserID:     in.UserID,
		Action:     model.AuditActionJobCreate,
		EntityType: "job",
		EntityID:   j.ID,
		Details:    map[string]any{"type": j.Type},
	})
	return j, nil
}

func (s *jobService) Announce(ctx context.Context, j *model.Job) {
	s.mirror(ctx, j)

	if s.pub == nil {
		return
	}
	msg := mq.JobMessage{JobID: j.ID, Type: j.Type}
	if err := s.pub.PublishJSON(ctx, s.cfg.RabbitMQ.ExchangeName.Job, j.Type, msg); err != nil {
		s.log.Warn("publish job failed, workers will pick it up by polling",
			zap.String("job_id", j.ID), zap.Error(err))
	}
}

func (s *jobService) mirror(ctx context.Context, j *model.Job) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, j); err != nil {
		s.log.Warn("cache job failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}

func (s *jobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if s.cache != nil {
		j, err := s.cache.Get(ctx, id)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("read job cache failed", zap.String("job_id", id), zap.Error(err))
		}
	}

	j, err := s.r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	// a read may be older than a concurrent post-commit mirror, so it only fills a gap
	if s.cache != nil {
		if err := s.cache.SetIfAbsent(ctx, j); err != nil {
			s.log.Warn("cache job failed", zap.String("job_id", id), zap.Error(err))
		}
	}
	return j, nil
}

type UpdateJobStatusInput struct {
	ID     string
	Status model.JobStatus
	Result datatypes.JSON
	Error  string
	UserID *int64
}

func validateStatusPayload(in UpdateJobStatusInput) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, in.Status)
	}
	hasErr := strings.TrimSpace(in.Error) != ""
	switch in.Status {
	case model.JobStatusFailed:
		if !hasErr {
			return ErrFailedWithoutError
		}
	case model.JobStatusCompleted:
		if hasErr {
			return ErrCompletedWithError
		}
	case model.JobStatusProcessing:
		if hasErr || len(in.Result) > 0 {
			return ErrProcessingWithError
		}
	}
	return nil
}

func (s *jobService) UpdateStatus(ctx context.Context, in UpdateJobStatusInput) (*model.Job, error) {
	if err := validateStatusPayload(in); err != nil {
		return nil, err
	}

	change := repo.JobStatusChange{Status: in.Status}
	if len(in.Result) > 0 {
		change.Result = in.Result
	}
	if in.Status == model.JobStatusFailed {
		msg := in.Error
		change.Error = &msg
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := s.r.Get(ctx, in.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrJobNotFound
			}
			return nil, err
		}
		if !cur.Status.CanTransitionTo(in.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, in.Status)
		}

		ok, err := s.r.UpdateStatusCAS(ctx, cur.ID, cur.Status, change)
		if err != nil {
			return nil, fmt.Errorf("update job status: %w", err)
		}
		if !ok {
			continue
		}

		updated, err := s.r.Get(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		s.committed(ctx, cur, updated, in.UserID, nil)
		return updated, nil
	}
	return nil, ErrTransitionConflict
}

// committed runs the post-commit side effects of a transition.
func (s *jobService) committed(ctx context.Context, before, after *model.Job, userID *int64, extra map[string]any) {
	s.mirror(ctx, after)
	telemetry.RecordJobTransition(ctx, after.Type, string(before.Status), string(after.Status))

	details := map[string]any{
		"from": string(before.Status),
		"to":   string(after.Status),
		"type": after.Type,
	}
	if after.Error != nil {
		details["error"] = *after.Error
	}
	for k, v := range extra {
		details[k] = v
	}
	s.audit.Append(ctx, AuditEntry{
		UserID:     userID,
		Action:     model.AuditActionJobUpdate,
		EntityType: "job",
		EntityID:   after.ID,
		Details:    details,
	})
}

func (s *jobService) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = s.cfg.Jobs.PollBatch
	}
	if limit <= 0 {
		limit = 10
	}
	return s.r.ListPending(ctx, limit)
}

func (s *jobService) SweepStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("sweep threshold must be positive, got %s", olderThan)
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	msg := fmt.Sprintf("job timed out after %s", olderThan)
	change := repo.JobStatusChange{Status: model.JobStatusFailed, Error: &msg}

	swept := 0
	for {
		batch, err := s.r.ListStuck(ctx, cutoff, sweepBatch)
		if err != nil {
			return swept, err
		}
		progressed := 0
		for _, j := range batch {
			ok, err := s.r.UpdateStatusCAS(ctx, j.ID, model.JobStatusProcessing, change)
			if err != nil {
				return swept, fmt.Errorf("sweep job %s: %w", j.ID, err)
			}
			if !ok {
				// finished meanwhile
				continue
			}
			progressed++
			after := *j
			after.Status = model.JobStatusFailed
			after.Error = &msg
			after.UpdatedAt = time.Now().UTC()
			s.committed(ctx, j, &after, nil, map[string]any{"reason": "timeout"})
		}
		swept += progressed
		if len(batch) < sweepBatch || progressed == 0 {
			break
		}
	}

	telemetry.RecordJobsSwept(ctx, swept)
	if swept > 0 {
		s.log.Info("swept stuck jobs", zap.Int("count", swept), zap.Duration("older_than", olderThan))
	}
	return swept, nil
}
