package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	stdmime "mime"
	"path"
	"strings"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/pkg/utils/fileparser"
	"github.com/datapilot-io/datapilot/internal/pkg/utils/mime"
	"github.com/datapilot-io/datapilot/internal/pkg/utils/storagekey"
	"github.com/datapilot-io/datapilot/internal/telemetry"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPreviewRows = 10
	MaxPreviewRows     = 1000
)

type DatasetService interface {
	Upload(ctx context.Context, in UploadDatasetInput) (*UploadDatasetOutput, error)
	Get(ctx context.Context, actorID, id int64) (*model.Dataset, error)
	ListByProject(ctx context.Context, actorID, projectID int64) ([]*model.Dataset, error)
	Delete(ctx context.Context, actorID, id int64) error
	Preview(ctx context.Context, actorID, id int64, rows int) (*DatasetPreview, error)
	// Open returns a reader over the stored bytes. The caller closes Body.
	Open(ctx context.Context, actorID, id int64) (*DatasetContent, error)
}

type datasetService struct {
	r        repo.DatasetRepo
	projects repo.ProjectRepo
	gate     AccessGate
	store    blob.Storage
	jobs     JobService
	audit    AuditService
	log      *zap.Logger
	cfg      *config.Config
}

func NewDatasetService(r repo.DatasetRepo, projects repo.ProjectRepo, gate AccessGate, store blob.Storage, jobs JobService, audit AuditService, log *zap.Logger, cfg *config.Config) DatasetService {
	return &datasetService{r: r, projects: projects, gate: gate, store: store, jobs: jobs, audit: audit, log: log, cfg: cfg}
}

type UploadDatasetInput struct {
	ActorID     int64
	ProjectID   int64
	Name        string
	Description *string
	Filename    string
	// Size is the size declared by the client, -1 when unknown.
	Size    int64
	Content io.Reader
}

type UploadDatasetOutput struct {
	Dataset *model.Dataset `json:"dataset"`
	JobID   string         `json:"job_id"`
}

// readBounded reads at most max bytes and reports ErrFileTooLarge past that.
func readBounded(r io.Reader, max int64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(buf)) > max {
		return nil, ErrFileTooLarge
	}
	return buf, nil
}

func datasetName(name, filename string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return "dataset"
	}
	return base
}

func (s *datasetService) Upload(ctx context.Context, in UploadDatasetInput) (*UploadDatasetOutput, error) {
	max := s.cfg.Storage.MaxUploadBytes

	// 1. payload checks, no side effects
	if in.Content == nil || in.Size == 0 {
		telemetry.RecordUploadRejected(ctx, "empty")
		return nil, ErrEmptyFile
	}
	if in.Size > max {
		telemetry.RecordUploadRejected(ctx, "too_large")
		return nil, ErrFileTooLarge
	}
	data, err := readBounded(in.Content, max)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			telemetry.RecordUploadRejected(ctx, "too_large")
		}
		return nil, err
	}
	if len(data) == 0 {
		telemetry.RecordUploadRejected(ctx, "empty")
		return nil, ErrEmptyFile
	}

	// 2. project and ownership
	p, err := s.projects.Get(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := s.gate.Authorize(in.ActorID, p.UserID); err != nil {
		return nil, err
	}

	// 3. key from project id and a uuid, original name contributes only its extension
	ext := storagekey.Ext(in.Filename)
	key := storagekey.ForDataset(p.ID, in.Filename)

	// 4. profile before storing so a malformed file leaves nothing behind
	var counts fileparser.Counts
	if fileparser.Supported(ext) {
		counts, err = fileparser.Estimate(ext, data)
		if err != nil {
			telemetry.RecordUploadRejected(ctx, "malformed")
			return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
		}
	} else {
		s.log.Info("skipping row estimation for unsupported file type",
			zap.String("file_type", ext), zap.Int64("project_id", p.ID))
	}

	// 5. store
	sniff := data
	if len(sniff) > mime.SniffLen {
		sniff = sniff[:mime.SniffLen]
	}
	contentType := mime.DetectMimeType(sniff, in.Filename)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store dataset: %w", err)
	}

	// 6. dataset row and its job commit together
	ds := &model.Dataset{
		Name:        datasetName(in.Name, in.Filename),
		Description: in.Description,
		ProjectID:   p.ID,
		FilePath:    key,
		FileType:    ext,
		SizeB:       int64(len(data)),
		RowCount:    counts.Rows,
		ColumnCount: counts.Columns,
	}
	actor := in.ActorID
	job, err := s.r.CreateWithJob(ctx, ds, func(ds *model.Dataset) (*model.Job, error) {
		payload, err := sonic.Marshal(map[string]any{"dataset_id": ds.ID})
		if err != nil {
			return nil, err
		}
		return NewPendingJob(model.JobTypeProcessDataset, datatypes.JSON(payload), &actor), nil
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil && !errors.Is(delErr, blob.ErrObjectNotFound) {
			s.log.Error("remove orphaned dataset object failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("record dataset: %w", err)
	}

	// 7. announce, 8. audit
	s.jobs.Announce(ctx, job)
	telemetry.RecordUpload(ctx, ext, ds.SizeB)
	s.audit.Append(ctx, AuditEntry{
		UserID:     &actor,
		Action:     model.AuditActionDatasetUpload,
		EntityType: "dataset",
		EntityID:   fmt.Sprint(ds.ID),
		Details: map[string]any{
			"project_id":   p.ID,
			"file_type":    ext,
			"size_b":       ds.SizeB,
			"row_count":    ds.RowCount,
			"column_count": ds.ColumnCount,
			"job_id":       job.ID,
		},
	})

	return &UploadDatasetOutput{Dataset: ds, JobID: job.ID}, nil
}

// authorized loads the dataset and checks the actor owns its project.
func (s *datasetService) authorized(ctx context.Context, actorID, id int64) (*model.Dataset, error) {
	ds, err := s.r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	p, err := s.projects.Get(ctx, ds.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	if err := s.gate.Authorize(actorID, p.UserID); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *datasetService) Get(ctx context.Context, actorID, id int64) (*model.Dataset, error) {
	return s.authorized(ctx, actorID, id)
}

func (s *datasetService) ListByProject(ctx context.Context, actorID, projectID int64) ([]*model.Dataset, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := s.gate.Authorize(actorID, p.UserID); err != nil {
		return nil, err
	}
	return s.r.ListByProject(ctx, p.ID)
}

func (s *datasetService) Delete(ctx context.Context, actorID, id int64) error {
	ds, err := s.authorized(ctx, actorID, id)
	if err != nil {
		return err
	}

	ds, err = s.r.Delete(ctx, ds.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDatasetNotFound
		}
		return fmt.Errorf("delete dataset: %w", err)
	}

	// the row is gone; the stored object is best effort from here
	err = s.store.Delete(context.WithoutCancel(ctx), ds.FilePath)
	switch {
	case errors.Is(err, blob.ErrObjectNotFound):
		s.log.Warn("dataset object already gone", zap.Int64("dataset_id", ds.ID), zap.String("key", ds.FilePath))
	case err != nil:
		s.log.Error("delete dataset object failed", zap.Int64("dataset_id", ds.ID), zap.String("key", ds.FilePath), zap.Error(err))
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &actorID,
		Action:     model.AuditActionDatasetDelete,
		EntityType: "dataset",
		EntityID:   fmt.Sprint(ds.ID),
		Details:    map[string]any{"project_id": ds.ProjectID, "file_path": ds.FilePath},
	})
	return nil
}

type DatasetPreview struct {
	DatasetID   int64            `json:"dataset_id"`
	FileType    string           `json:"file_type"`
	TotalRows   int              `json:"total_rows"`
	PreviewRows int              `json:"preview_rows"`
	Rows        []map[string]any `json:"rows"`
}

// ClampPreviewRows maps a requested row count into [1, MaxPreviewRows].
func ClampPreviewRows(n int) int {
	if n <= 0 {
		return DefaultPreviewRows
	}
	if n > MaxPreviewRows {
		return MaxPreviewRows
	}
	return n
}

func (s *datasetService) readAll(ctx context.Context, ds *model.Dataset) ([]byte, error) {
	rc, err := s.store.Get(ctx, ds.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			return nil, ErrDatasetFileMissing
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *datasetService) Preview(ctx context.Context, actorID, id int64, rows int) (*DatasetPreview, error) {
	ds, err := s.authorized(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if !fileparser.Supported(ds.FileType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ds.FileType)
	}

	data, err := s.readAll(ctx, ds)
	if err != nil {
		return nil, err
	}
	p, err := fileparser.PreviewRows(ds.FileType, data, ClampPreviewRows(rows))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	return &DatasetPreview{
		DatasetID:   ds.ID,
		FileType:    ds.FileType,
		TotalRows:   p.TotalRows,
		PreviewRows: len(p.Rows),
		Rows:        p.Rows,
	}, nil
}

type DatasetContent struct {
	Dataset     *model.Dataset
	Body        io.ReadCloser
	ContentType string
	// Disposition is a ready Content-Disposition header value.
	Disposition string
}

type readCloser struct {
	io.Reader
	io.Closer
}

func downloadName(ds *model.Dataset) string {
	name := strings.TrimSpace(ds.Name)
	if name == "" {
		name = fmt.Sprintf("dataset-%d", ds.ID)
	}
	if ds.FileType != "" && !strings.HasSuffix(strings.ToLower(name), "."+ds.FileType) {
		name += "." + ds.FileType
	}
	return name
}

func (s *datasetService) Open(ctx context.Context, actorID, id int64) (*DatasetContent, error) {
	ds, err := s.authorized(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	rc, err := s.store.Get(ctx, ds.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			return nil, ErrDatasetFileMissing
		}
		return nil, err
	}

	br := bufio.NewReaderSize(rc, mime.SniffLen)
	head, err := br.Peek(mime.SniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		_ = rc.Close()
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &actorID,
		Action:     model.AuditActionDatasetDownload,
		EntityType: "dataset",
		EntityID:   fmt.Sprint(ds.ID),
	})

	return &DatasetContent{
		Dataset:     ds,
		Body:        readCloser{Reader: br, Closer: rc},
		ContentType: mime.DetectMimeType(head, ds.FilePath),
		Disposition: stdmime.FormatMediaType("attachment", map[string]string{"filename": downloadName(ds)}),
	}, nil
}
