package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/pkg/utils/fileparser"
	"gorm.io/gorm"
)

type datasetPayload struct {
	DatasetID int64 `json:"dataset_id"`
}

// DatasetProcessor profiles an uploaded dataset file column by column.
type DatasetProcessor struct {
	datasets repo.DatasetRepo
	store    blob.Storage
}

func NewDatasetProcessor(datasets repo.DatasetRepo, store blob.Storage) *DatasetProcessor {
	return &DatasetProcessor{datasets: datasets, store: store}
}

func (p *DatasetProcessor) Process(ctx context.Context, j *model.Job) (any, error) {
	ds, err := loadDataset(ctx, p.datasets, j)
	if err != nil {
		return nil, err
	}
	if !fileparser.Supported(ds.FileType) {
		return nil, fmt.Errorf("unsupported file type %q", ds.FileType)
	}

	rc, err := p.store.Get(ctx, ds.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			return nil, fmt.Errorf("dataset %d file missing from storage", ds.ID)
		}
		return nil, fmt.Errorf("open dataset %d: %w", ds.ID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read dataset %d: %w", ds.ID, err)
	}
	summary, err := fileparser.Profile(ds.FileType, data)
	if err != nil {
		return nil, fmt.Errorf("profile dataset %d: %w", ds.ID, err)
	}
	return summary, nil
}

// loadDataset resolves the dataset_id carried in the job data.
func loadDataset(ctx context.Context, datasets repo.DatasetRepo, j *model.Job) (*model.Dataset, error) {
	var payload datasetPayload
	if len(j.Data) == 0 {
		return nil, errors.New("job data is empty")
	}
	if err := sonic.Unmarshal(j.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode job data: %w", err)
	}
	if payload.DatasetID <= 0 {
		return nil, errors.New("job data has no dataset_id")
	}
	ds, err := datasets.Get(ctx, payload.DatasetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dataset %d no longer exists", payload.DatasetID)
		}
		return nil, err
	}
	return ds, nil
}
