package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const salesCSV = "region,units,price\nnorth,3,1.5\n\nsouth,5,2.25\n"

func uploadInput(actor, projectID int64, filename, content string) UploadDatasetInput {
	return UploadDatasetInput{
		ActorID:   actor,
		ProjectID: projectID,
		Filename:  filename,
		Size:      int64(len(content)),
		Content:   strings.NewReader(content),
	}
}

func TestDatasetService_UploadCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "sales")

	out, err := f.dataset.Upload(ctx, uploadInput(u.ID, p.ID, "Q1 Sales.CSV", salesCSV))
	require.NoError(t, err)

	ds := out.Dataset
	assert.Equal(t, "Q1 Sales.CSV", ds.Name)
	assert.Equal(t, "csv", ds.FileType)
	assert.Equal(t, 2, ds.RowCount)
	assert.Equal(t, 3, ds.ColumnCount)
	assert.Equal(t, int64(len(salesCSV)), ds.SizeB)
	assert.True(t, strings.HasPrefix(ds.FilePath, fmt.Sprintf("projects/%d/", p.ID)))
	assert.True(t, strings.HasSuffix(ds.FilePath, ".csv"))
	assert.NotContains(t, ds.FilePath, "Sales")

	assert.Equal(t, []string{ds.FilePath}, f.storedFiles(t))

	job, err := f.jobRepo.Get(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobTypeProcessDataset, job.Type)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.JSONEq(t, fmt.Sprintf(`{"dataset_id":%d}`, ds.ID), string(job.Data))
	require.NotNil(t, job.CreatedBy)
	assert.Equal(t, u.ID, *job.CreatedBy)

	f.pub.AssertCalled(t, "PublishJSON", mock.Anything, "datapilot.job", model.JobTypeProcessDataset, mock.Anything)
	assert.Equal(t, []string{model.AuditActionProjectCreate, model.AuditActionDatasetUpload}, f.auditActions(t))
}

func TestDatasetService_UploadJSON(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(context.Background(), uploadInput(u.ID, p.ID, "rows.json", `[{"a":1,"b":2},{"a":3,"b":4},{"a":5,"b":6}]`))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Dataset.RowCount)
	assert.Equal(t, 2, out.Dataset.ColumnCount)
}

func TestDatasetService_UploadCSVWithStrayQuotes(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(context.Background(), uploadInput(u.ID, p.ID, "people.csv", "name,height\nBob,5'11\"\nAmy,6\"\n,\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Dataset.RowCount)
	assert.Equal(t, 2, out.Dataset.ColumnCount)
	assert.Len(t, f.storedFiles(t), 1)
}

func TestDatasetService_UploadUnsupportedTypeKeepsZeroCounts(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(context.Background(), uploadInput(u.ID, p.ID, "book.xlsx", "PK\x03\x04 not really"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx", out.Dataset.FileType)
	assert.Zero(t, out.Dataset.RowCount)
	assert.Zero(t, out.Dataset.ColumnCount)
	assert.Len(t, f.storedFiles(t), 1)
}

func TestDatasetService_UploadRejectedLeavesNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		build func(f *fixture, owner, other, projectID int64) UploadDatasetInput
		want  error
	}{
		{
			name: "declared size over limit",
			build: func(f *fixture, owner, _, pid int64) UploadDatasetInput {
				in := uploadInput(owner, pid, "big.csv", "a\n1\n")
				in.Size = f.cfg.Storage.MaxUploadBytes + 1
				return in
			},
			want: ErrFileTooLarge,
		},
		{
			name: "streamed size over limit",
			build: func(f *fixture, owner, _, pid int64) UploadDatasetInput {
				in := uploadInput(owner, pid, "big.csv", "a\n"+strings.Repeat("1\n", int(f.cfg.Storage.MaxUploadBytes)))
				in.Size = -1
				return in
			},
			want: ErrFileTooLarge,
		},
		{
			name: "empty",
			build: func(_ *fixture, owner, _, pid int64) UploadDatasetInput {
				in := uploadInput(owner, pid, "empty.csv", "")
				in.Size = -1
				return in
			},
			want: ErrEmptyFile,
		},
		{
			name: "not the owner",
			build: func(_ *fixture, _, other, pid int64) UploadDatasetInput {
				return uploadInput(other, pid, "a.csv", salesCSV)
			},
			want: ErrForbidden,
		},
		{
			name: "missing project",
			build: func(_ *fixture, owner, _, _ int64) UploadDatasetInput {
				return uploadInput(owner, 999, "a.csv", salesCSV)
			},
			want: ErrProjectNotFound,
		},
		{
			name: "malformed json",
			build: func(_ *fixture, owner, _, pid int64) UploadDatasetInput {
				return uploadInput(owner, pid, "bad.json", `[{"a":1},`)
			},
			want: ErrMalformedFile,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			owner := f.seedUser(t, "owner@example.com")
			other := f.seedUser(t, "other@example.com")
			p := f.seedProject(t, owner.ID, "p")

			_, err := f.dataset.Upload(ctx, tt.build(f, owner.ID, other.ID, p.ID))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.storedFiles(t))
			assert.Zero(t, f.count(t, &model.Dataset{}))
			assert.Zero(t, f.count(t, &model.Job{}))
			f.pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDatasetService_UploadJobInsertFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	injected := errors.New("injected job insert failure")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_jobs", func(tx *gorm.DB) {
		if tx.Statement.Table == "jobs" {
			_ = tx.AddError(injected)
		}
	}))

	_, err := f.dataset.Upload(context.Background(), uploadInput(u.ID, p.ID, "a.csv", salesCSV))
	assert.ErrorIs(t, err, injected)

	assert.Zero(t, f.count(t, &model.Dataset{}))
	assert.Zero(t, f.count(t, &model.Job{}))
	assert.Empty(t, f.storedFiles(t))
	f.pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// MockAuditLogRepo is a mock implementation of AuditLogRepo
type MockAuditLogRepo struct {
	mock.Mock
}

func (m *MockAuditLogRepo) Create(ctx context.Context, l *model.AuditLog) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockAuditLogRepo) ListByUser(ctx context.Context, userID int64, afterCreatedAt time.Time, afterID int64, limit int) ([]*model.AuditLog, error) {
	args := m.Called(ctx, userID, afterCreatedAt, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AuditLog), args.Error(1)
}

func (m *MockAuditLogRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	args := m.Called(ctx, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AuditLog), args.Error(1)
}

func (m *MockAuditLogRepo) ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	args := m.Called(ctx, userID, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AuditLog), args.Error(1)
}

var _ repo.AuditLogRepo = (*MockAuditLogRepo)(nil)

func TestDatasetService_UploadSurvivesAuditFailure(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	auditRepo := &MockAuditLogRepo{}
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("audit table locked"))
	audit := NewAuditService(auditRepo, zap.NewNop())
	svc := NewDatasetService(f.datasets, f.projects, f.gate, f.store, f.jobs, audit, zap.NewNop(), f.cfg)

	out, err := svc.Upload(context.Background(), uploadInput(u.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)
	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, int64(1), f.count(t, &model.Dataset{}))
	assert.Len(t, f.storedFiles(t), 1)
	auditRepo.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(l *model.AuditLog) bool {
		return l.Action == model.AuditActionDatasetUpload
	}))
}

func TestDatasetService_AuditWriteOutlivesCancelledRequest(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(context.Background(), uploadInput(u.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.audit.Append(ctx, AuditEntry{UserID: &u.ID, Action: model.AuditActionDatasetDownload, EntityType: "dataset", EntityID: fmt.Sprint(out.Dataset.ID)})

	logs, err := f.audit.ListByEntity(context.Background(), "dataset", fmt.Sprint(out.Dataset.ID), 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestDatasetService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	other := f.seedUser(t, "other@example.com")
	p := f.seedProject(t, owner.ID, "p")

	out, err := f.dataset.Upload(ctx, uploadInput(owner.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)

	got, err := f.dataset.Get(ctx, owner.ID, out.Dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Dataset.FilePath, got.FilePath)

	_, err = f.dataset.Get(ctx, other.ID, out.Dataset.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.dataset.Get(ctx, owner.ID, 404)
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	items, err := f.dataset.ListByProject(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	_, err = f.dataset.ListByProject(ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.dataset.ListByProject(ctx, owner.ID, 404)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	// the dev bypass opens foreign projects outside production
	f.cfg.Auth.DevOwnershipBypass = true
	_, err = f.dataset.Get(ctx, other.ID, out.Dataset.ID)
	assert.NoError(t, err)
}

func TestDatasetService_Preview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(ctx, uploadInput(u.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)

	pv, err := f.dataset.Preview(ctx, u.ID, out.Dataset.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "csv", pv.FileType)
	assert.Equal(t, 2, pv.TotalRows)
	assert.Equal(t, 1, pv.PreviewRows)
	require.Len(t, pv.Rows, 1)
	assert.Equal(t, "north", pv.Rows[0]["region"])

	pv, err = f.dataset.Preview(ctx, u.ID, out.Dataset.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, pv.PreviewRows)

	bin, err := f.dataset.Upload(ctx, uploadInput(u.ID, p.ID, "notes.txt", "hello"))
	require.NoError(t, err)
	_, err = f.dataset.Preview(ctx, u.ID, bin.Dataset.ID, 5)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	require.NoError(t, f.store.Delete(ctx, out.Dataset.FilePath))
	_, err = f.dataset.Preview(ctx, u.ID, out.Dataset.ID, 5)
	assert.ErrorIs(t, err, ErrDatasetFileMissing)
}

func TestClampPreviewRows(t *testing.T) {
	assert.Equal(t, DefaultPreviewRows, ClampPreviewRows(0))
	assert.Equal(t, DefaultPreviewRows, ClampPreviewRows(-3))
	assert.Equal(t, 7, ClampPreviewRows(7))
	assert.Equal(t, MaxPreviewRows, ClampPreviewRows(MaxPreviewRows+1))
}

func TestDatasetService_Open(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	out, err := f.dataset.Upload(ctx, UploadDatasetInput{
		ActorID: u.ID, ProjectID: p.ID, Name: "Q1 sales", Filename: "q1.csv",
		Size: int64(len(salesCSV)), Content: strings.NewReader(salesCSV),
	})
	require.NoError(t, err)

	content, err := f.dataset.Open(ctx, u.ID, out.Dataset.ID)
	require.NoError(t, err)
	defer content.Body.Close()

	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, salesCSV, string(body))
	assert.True(t, strings.HasPrefix(content.ContentType, "text/csv"), content.ContentType)
	assert.Equal(t, `attachment; filename="Q1 sales.csv"`, content.Disposition)
	assert.Contains(t, f.auditActions(t), model.AuditActionDatasetDownload)

	require.NoError(t, f.store.Delete(ctx, out.Dataset.FilePath))
	_, err = f.dataset.Open(ctx, u.ID, out.Dataset.ID)
	assert.ErrorIs(t, err, ErrDatasetFileMissing)
}

// failingDeleteStore fails every Delete with a non-not-found error.
type failingDeleteStore struct {
	*blob.LocalStorage
}

func (failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("permission denied")
}

func TestDatasetService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	other := f.seedUser(t, "other@example.com")
	p := f.seedProject(t, owner.ID, "p")

	out, err := f.dataset.Upload(ctx, uploadInput(owner.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)

	assert.ErrorIs(t, f.dataset.Delete(ctx, other.ID, out.Dataset.ID), ErrForbidden)

	require.NoError(t, f.dataset.Delete(ctx, owner.ID, out.Dataset.ID))
	assert.Zero(t, f.count(t, &model.Dataset{}))
	assert.Empty(t, f.storedFiles(t))
	assert.ErrorIs(t, f.dataset.Delete(ctx, owner.ID, out.Dataset.ID), ErrDatasetNotFound)

	// an object that is already gone does not block the row delete
	again, err := f.dataset.Upload(ctx, uploadInput(owner.ID, p.ID, "b.csv", salesCSV))
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, again.Dataset.FilePath))
	require.NoError(t, f.dataset.Delete(ctx, owner.ID, again.Dataset.ID))
	assert.Zero(t, f.count(t, &model.Dataset{}))
}

func TestDatasetService_DeleteRemovesObjectAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, owner.ID, "p")

	out, err := f.dataset.Upload(ctx, uploadInput(owner.ID, p.ID, "a.csv", salesCSV))
	require.NoError(t, err)

	// a storage failure after commit is logged, never surfaced
	core, logs := observer.New(zap.ErrorLevel)
	broken := NewDatasetService(f.datasets, f.projects, f.gate, failingDeleteStore{f.store}, f.jobs, f.audit, zap.New(core), f.cfg)
	require.NoError(t, broken.Delete(ctx, owner.ID, out.Dataset.ID))
	assert.Zero(t, f.count(t, &model.Dataset{}))
	assert.Len(t, f.storedFiles(t), 1, "orphaned object is left behind")
	assert.Equal(t, 1, logs.FilterMessage("delete dataset object failed").Len())
	assert.Contains(t, f.auditActions(t), model.AuditActionDatasetDelete)

	// a cancelled request still removes the object once the row is gone
	again, err := f.dataset.Upload(ctx, uploadInput(owner.ID, p.ID, "b.csv", salesCSV))
	require.NoError(t, err)
	hooked := &cancelOnDeleteRepo{DatasetRepo: f.datasets}
	svc := NewDatasetService(hooked, f.projects, f.gate, ctxAwareStore{f.store}, f.jobs, f.audit, zap.NewNop(), f.cfg)
	cctx, cancel := context.WithCancel(ctx)
	hooked.cancel = cancel
	require.NoError(t, svc.Delete(cctx, owner.ID, again.Dataset.ID))
	assert.Zero(t, f.count(t, &model.Dataset{}))
	assert.Len(t, f.storedFiles(t), 1, "only the orphan from the failed store remains")
}

// ctxAwareStore refuses to delete under a done context, like a remote backend.
type ctxAwareStore struct {
	*blob.LocalStorage
}

func (s ctxAwareStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.LocalStorage.Delete(ctx, key)
}

// cancelOnDeleteRepo cancels the request context once the row delete commits.
type cancelOnDeleteRepo struct {
	repo.DatasetRepo
	cancel context.CancelFunc
}

func (r *cancelOnDeleteRepo) Delete(ctx context.Context, id int64) (*model.Dataset, error) {
	ds, err := r.DatasetRepo.Delete(ctx, id)
	r.cancel()
	return ds, err
}

func TestDatasetService_UploadUnknownSize(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "owner@example.com")
	p := f.seedProject(t, u.ID, "p")

	big := "a,b\n" + strings.Repeat("1,2\n", 200)
	f.cfg.Storage.MaxUploadBytes = int64(len(big)) + 10
	out, err := f.dataset.Upload(context.Background(), UploadDatasetInput{
		ActorID: u.ID, ProjectID: p.ID, Filename: "wide.csv", Size: -1, Content: bytes.NewBufferString(big),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, out.Dataset.RowCount)
}
