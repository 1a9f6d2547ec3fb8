package handler

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func datasetRouter(t *testing.T, uid int64, svc *MockDatasetService) *gin.Engine {
	return datasetRouterWithLimit(t, uid, svc, 1<<20)
}

func datasetRouterWithLimit(t *testing.T, uid int64, svc *MockDatasetService, maxUploadBytes int64) *gin.Engine {
	h := NewDatasetHandler(svc, maxUploadBytes)
	return newTestRouter(t, uid, func(r *gin.Engine) {
		r.POST("/datasets/upload", h.UploadDataset)
		r.GET("/projects/:id/datasets", h.ListProjectDatasets)
		r.GET("/datasets/:id", h.GetDataset)
		r.DELETE("/datasets/:id", h.DeleteDataset)
		r.GET("/datasets/:id/preview", h.PreviewDataset)
		r.GET("/datasets/:id/download", h.DownloadDataset)
	})
}

// multipartBody builds an upload form. An empty filename omits the file part.
func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestDatasetHandler_UploadDataset(t *testing.T) {
	csv := "a,b\n1,2\n"
	tests := []struct {
		name           string
		fields         map[string]string
		filename       string
		setup          func(*MockDatasetService)
		expectedStatus int
	}{
		{
			name:     "success",
			fields:   map[string]string{"project_id": "7", "name": "sales"},
			filename: "sales.csv",
			setup: func(svc *MockDatasetService) {
				svc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadDatasetInput) bool {
					return in.ActorID == 5 && in.ProjectID == 7 && in.Name == "sales" &&
						in.Filename == "sales.csv" && in.Size == int64(len(csv)) && in.Content != nil
				})).Return(&service.UploadDatasetOutput{Dataset: &model.Dataset{ID: 1}, JobID: "job-1"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing project id",
			fields:         map[string]string{"name": "sales"},
			filename:       "sales.csv",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing file",
			fields:         map[string]string{"project_id": "7"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:     "foreign project",
			fields:   map[string]string{"project_id": "8"},
			filename: "sales.csv",
			setup: func(svc *MockDatasetService) {
				svc.On("Upload", mock.Anything, mock.Anything).Return(nil, service.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:     "too large",
			fields:   map[string]string{"project_id": "7"},
			filename: "sales.csv",
			setup: func(svc *MockDatasetService) {
				svc.On("Upload", mock.Anything, mock.Anything).Return(nil, service.ErrFileTooLarge)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDatasetService{}
			if tt.setup != nil {
				tt.setup(svc)
			}
			body, ct := multipartBody(t, tt.fields, tt.filename, csv)
			rec := doRequest(datasetRouter(t, 5, svc), http.MethodPost, "/datasets/upload", body, ct)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_UploadDataset_BodyOverLimit(t *testing.T) {
	svc := &MockDatasetService{}
	content := strings.Repeat("1,2\n", (uploadFormSlack/4)+64)
	body, ct := multipartBody(t, map[string]string{"project_id": "7"}, "big.csv", "a,b\n"+content)

	rec := doRequest(datasetRouterWithLimit(t, 5, svc, 16), http.MethodPost, "/datasets/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), service.ErrFileTooLarge.Error())
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDatasetHandler_UploadDataset_ResponseShape(t *testing.T) {
	svc := &MockDatasetService{}
	svc.On("Upload", mock.Anything, mock.Anything).
		Return(&service.UploadDatasetOutput{Dataset: &model.Dataset{ID: 3, RowCount: 1, ColumnCount: 2}, JobID: "job-9"}, nil)

	body, ct := multipartBody(t, map[string]string{"project_id": "7"}, "x.csv", "a,b\n1,2\n")
	rec := doRequest(datasetRouter(t, 5, svc), http.MethodPost, "/datasets/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "job-9", data["job_id"])
	ds := data["dataset"].(map[string]interface{})
	assert.EqualValues(t, 1, ds["row_count"])
	assert.EqualValues(t, 2, ds["column_count"])
}

func TestDatasetHandler_GetListDelete(t *testing.T) {
	svc := &MockDatasetService{}
	svc.On("Get", mock.Anything, int64(5), int64(1)).Return(&model.Dataset{ID: 1, Name: "sales"}, nil)
	svc.On("Get", mock.Anything, int64(5), int64(2)).Return(nil, service.ErrDatasetNotFound)
	svc.On("ListByProject", mock.Anything, int64(5), int64(7)).Return([]*model.Dataset{{ID: 1}, {ID: 2}}, nil)
	svc.On("Delete", mock.Anything, int64(5), int64(1)).Return(nil)
	svc.On("Delete", mock.Anything, int64(5), int64(3)).Return(service.ErrForbidden)
	r := datasetRouter(t, 5, svc)

	rec := doJSON(r, http.MethodGet, "/datasets/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sales", decodeResponse(t, rec).Data.(map[string]interface{})["name"])
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/datasets/2", "").Code)

	rec = doJSON(r, http.MethodGet, "/projects/7/datasets", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeResponse(t, rec).Data.([]interface{}), 2)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/datasets/1", "").Code)
	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodDelete, "/datasets/3", "").Code)
	svc.AssertExpectations(t)
}

func TestDatasetHandler_PreviewDataset(t *testing.T) {
	svc := &MockDatasetService{}
	svc.On("Preview", mock.Anything, int64(5), int64(1), service.DefaultPreviewRows).
		Return(&service.DatasetPreview{DatasetID: 1, PreviewRows: 2}, nil)
	svc.On("Preview", mock.Anything, int64(5), int64(1), 3).
		Return(&service.DatasetPreview{DatasetID: 1, PreviewRows: 3}, nil)
	svc.On("Preview", mock.Anything, int64(5), int64(2), service.DefaultPreviewRows).
		Return(nil, service.ErrUnsupportedFileType)
	r := datasetRouter(t, 5, svc)

	rec := doJSON(r, http.MethodGet, "/datasets/1/preview", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeResponse(t, rec).Data.(map[string]interface{})["preview_rows"])

	rec = doJSON(r, http.MethodGet, "/datasets/1/preview?rows=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/datasets/1/preview?rows=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rows must be an integer", decodeResponse(t, rec).Msg)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/datasets/2/preview", "").Code)
	svc.AssertExpectations(t)
}

func TestDatasetHandler_DownloadDataset(t *testing.T) {
	svc := &MockDatasetService{}
	payload := "a,b\n1,2\n"
	svc.On("Open", mock.Anything, int64(5), int64(1)).Return(&service.DatasetContent{
		Dataset:     &model.Dataset{ID: 1, SizeB: int64(len(payload))},
		Body:        io.NopCloser(strings.NewReader(payload)),
		ContentType: "text/csv",
		Disposition: `attachment; filename="sales.csv"`,
	}, nil)
	svc.On("Open", mock.Anything, int64(5), int64(2)).Return(nil, service.ErrDatasetFileMissing)
	r := datasetRouter(t, 5, svc)

	rec := doJSON(r, http.MethodGet, "/datasets/1/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sales.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/datasets/2/download", "").Code)
	svc.AssertExpectations(t)
}
