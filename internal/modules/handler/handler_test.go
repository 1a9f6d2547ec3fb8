package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRouter builds an engine whose requests are attributed to uid. A
// zero uid leaves the request unauthenticated.
func newTestRouter(t *testing.T, uid int64, register func(r *gin.Engine)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	serializer.SetLogger(zap.NewNop())
	require.NoError(t, RegisterValidators())

	r := gin.New()
	if uid > 0 {
		r.Use(func(c *gin.Context) {
			c.Set(ContextUserID, uid)
			c.Next()
		})
	}
	register(r)
	return r
}

func doRequest(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	return doRequest(r, method, path, rd, "application/json")
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) serializer.Response {
	t.Helper()
	var resp serializer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, in service.LoginInput) (*service.LoginOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginOutput), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, in service.CreateProjectInput) (*model.Project, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, actorID, id int64) (*model.Project, error) {
	args := m.Called(ctx, actorID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context, in service.ListProjectsInput) (*service.ListProjectsOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListProjectsOutput), args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, in service.UpdateProjectInput) (*model.Project, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectService) Delete(ctx context.Context, actorID, id int64) error {
	args := m.Called(ctx, actorID, id)
	return args.Error(0)
}

type MockDatasetService struct {
	mock.Mock
}

func (m *MockDatasetService) Upload(ctx context.Context, in service.UploadDatasetInput) (*service.UploadDatasetOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadDatasetOutput), args.Error(1)
}

func (m *MockDatasetService) Get(ctx context.Context, actorID, id int64) (*model.Dataset, error) {
	args := m.Called(ctx, actorID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dataset), args.Error(1)
}

func (m *MockDatasetService) ListByProject(ctx context.Context, actorID, projectID int64) ([]*model.Dataset, error) {
	args := m.Called(ctx, actorID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Dataset), args.Error(1)
}

func (m *MockDatasetService) Delete(ctx context.Context, actorID, id int64) error {
	args := m.Called(ctx, actorID, id)
	return args.Error(0)
}

func (m *MockDatasetService) Preview(ctx context.Context, actorID, id int64, rows int) (*service.DatasetPreview, error) {
	args := m.Called(ctx, actorID, id, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DatasetPreview), args.Error(1)
}

func (m *MockDatasetService) Open(ctx context.Context, actorID, id int64) (*service.DatasetContent, error) {
	args := m.Called(ctx, actorID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DatasetContent), args.Error(1)
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Create(ctx context.Context, in service.CreateJobInput) (*model.Job, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *MockJobService) UpdateStatus(ctx context.Context, in service.UpdateJobStatusInput) (*model.Job, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *MockJobService) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Job), args.Error(1)
}

func (m *MockJobService) SweepStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *MockJobService) Announce(ctx context.Context, j *model.Job) {
	m.Called(ctx, j)
}

type MockMLService struct {
	mock.Mock
}

func (m *MockMLService) Train(ctx context.Context, in service.TrainInput) (*model.Job, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *MockMLService) Predict(ctx context.Context, in service.PredictInput) (*model.Job, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

type MockFeatureFlagService struct {
	mock.Mock
}

func (m *MockFeatureFlagService) Get(ctx context.Context, name string) (*model.FeatureFlag, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) List(ctx context.Context) ([]*model.FeatureFlag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) Create(ctx context.Context, in service.CreateFeatureFlagInput) (*model.FeatureFlag, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) SetEnabled(ctx context.Context, in service.SetFeatureFlagInput) (*model.FeatureFlag, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) IsEnabled(ctx context.Context, name string, def bool) bool {
	args := m.Called(ctx, name, def)
	return args.Bool(0)
}

func (m *MockFeatureFlagService) SeedDefaults(ctx context.Context, defaults map[string]bool) (int, error) {
	args := m.Called(ctx, defaults)
	return args.Int(0), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Append(ctx context.Context, e service.AuditEntry) {
	m.Called(ctx, e)
}

func (m *MockAuditService) ListByUser(ctx context.Context, in service.ListAuditLogsInput) (*service.ListAuditLogsOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListAuditLogsOutput), args.Error(1)
}

func (m *MockAuditService) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	args := m.Called(ctx, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AuditLog), args.Error(1)
}

func (m *MockAuditService) ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	args := m.Called(ctx, userID, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AuditLog), args.Error(1)
}

var (
	_ service.UserService        = (*MockUserService)(nil)
	_ service.ProjectService     = (*MockProjectService)(nil)
	_ service.DatasetService     = (*MockDatasetService)(nil)
	_ service.JobService         = (*MockJobService)(nil)
	_ service.MLService          = (*MockMLService)(nil)
	_ service.FeatureFlagService = (*MockFeatureFlagService)(nil)
	_ service.AuditService       = (*MockAuditService)(nil)
)
