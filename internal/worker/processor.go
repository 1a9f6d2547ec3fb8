package worker

import (
	"context"
	"errors"

	"github.com/datapilot-io/datapilot/internal/modules/model"
)

var ErrNoProcessor = errors.New("no processor for job type")

// Processor executes one job type. The returned value is stored as the job result.
type Processor interface {
	Process(ctx context.Context, j *model.Job) (any, error)
}

type ProcessorFunc func(ctx context.Context, j *model.Job) (any, error)

func (f ProcessorFunc) Process(ctx context.Context, j *model.Job) (any, error) { return f(ctx, j) }
