package worker

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/datapilot-io/datapilot/internal/infra/httpclient"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/modules/service"
)

// MLBackend is the subset of *httpclient.MLClient the processors call.
type MLBackend interface {
	Train(ctx context.Context, req httpclient.TrainRequest) (*httpclient.TrainResponse, error)
	Predict(ctx context.Context, req httpclient.PredictRequest) (*httpclient.PredictResponse, error)
}

type TrainProcessor struct {
	datasets repo.DatasetRepo
	client   MLBackend
}

func NewTrainProcessor(datasets repo.DatasetRepo, client MLBackend) *TrainProcessor {
	return &TrainProcessor{datasets: datasets, client: client}
}

func (p *TrainProcessor) Process(ctx context.Context, j *model.Job) (any, error) {
	ds, err := loadDataset(ctx, p.datasets, j)
	if err != nil {
		return nil, err
	}
	var payload service.TrainPayload
	if err := sonic.Unmarshal(j.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode job data: %w", err)
	}
	resp, err := p.client.Train(ctx, httpclient.TrainRequest{
		JobID:           j.ID,
		DatasetID:       ds.ID,
		FilePath:        ds.FilePath,
		ModelType:       payload.ModelType,
		Features:        payload.Features,
		Target:          payload.Target,
		Hyperparameters: payload.Hyperparameters,
	})
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return resp, nil
}

type PredictProcessor struct {
	datasets repo.DatasetRepo
	client   MLBackend
}

func NewPredictProcessor(datasets repo.DatasetRepo, client MLBackend) *PredictProcessor {
	return &PredictProcessor{datasets: datasets, client: client}
}

func (p *PredictProcessor) Process(ctx context.Context, j *model.Job) (any, error) {
	ds, err := loadDataset(ctx, p.datasets, j)
	if err != nil {
		return nil, err
	}
	var payload service.PredictPayload
	if err := sonic.Unmarshal(j.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode job data: %w", err)
	}
	resp, err := p.client.Predict(ctx, httpclient.PredictRequest{
		JobID:     j.ID,
		DatasetID: ds.ID,
		ModelID:   payload.ModelID,
		Input:     payload.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return resp, nil
}
