package service

import (
	"context"
	"strings"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
)

// MLService turns train and predict requests into queued jobs. The worker
// forwards the job payload to the ML backend.
type MLService interface {
	Train(ctx context.Context, in TrainInput) (*model.Job, error)
	Predict(ctx context.Context, in PredictInput) (*model.Job, error)
}

type mlService struct {
	datasets DatasetService
	jobs     JobService
}

func NewMLService(datasets DatasetService, jobs JobService) MLService {
	return &mlService{datasets: datasets, jobs: jobs}
}

type TrainInput struct {
	ActorID         int64
	DatasetID       int64
	ModelType       string
	Features        []string
	Target          string
	Hyperparameters map[string]any
}

// TrainPayload is the data column of a train_model job.
type TrainPayload struct {
	DatasetID       int64          `json:"dataset_id"`
	ModelType       string         `json:"model_type"`
	Features        []string       `json:"features"`
	Target          string         `json:"target"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
}

type PredictInput struct {
	ActorID   int64
	DatasetID int64
	ModelID   string
	Input     any
}

// PredictPayload is the data column of a predict job.
type PredictPayload struct {
	DatasetID int64  `json:"dataset_id"`
	ModelID   string `json:"model_id"`
	Input     any    `json:"input"`
}

func (s *mlService) Train(ctx context.Context, in TrainInput) (*model.Job, error) {
	modelType := strings.TrimSpace(in.ModelType)
	if modelType == "" {
		return nil, ErrModelTypeRequired
	}
	target := strings.TrimSpace(in.Target)
	if target == "" {
		return nil, ErrTargetRequired
	}
	ds, err := s.datasets.Get(ctx, in.ActorID, in.DatasetID)
	if err != nil {
		return nil, err
	}

	features := in.Features
	if features == nil {
		features = []string{}
	}
	data, err := sonic.Marshal(TrainPayload{
		DatasetID:       ds.ID,
		ModelType:       modelType,
		Features:        features,
		Target:          target,
		Hyperparameters: in.Hyperparameters,
	})
	if err != nil {
		return nil, err
	}
	return s.jobs.Create(ctx, CreateJobInput{Type: model.JobTypeTrainModel, Data: datatypes.JSON(data), UserID: &in.ActorID})
}

func (s *mlService) Predict(ctx context.Context, in PredictInput) (*model.Job, error) {
	modelID := strings.TrimSpace(in.ModelID)
	if modelID == "" {
		return nil, ErrModelIDRequired
	}
	ds, err := s.datasets.Get(ctx, in.ActorID, in.DatasetID)
	if err != nil {
		return nil, err
	}

	data, err := sonic.Marshal(PredictPayload{DatasetID: ds.ID, ModelID: modelID, Input: in.Input})
	if err != nil {
		return nil, err
	}
	return s.jobs.Create(ctx, CreateJobInput{Type: model.JobTypePredict, Data: datatypes.JSON(data), UserID: &in.ActorID})
}
