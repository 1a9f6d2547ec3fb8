package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func projectRouter(t *testing.T, uid int64, svc *MockProjectService) *gin.Engine {
	h := NewProjectHandler(svc)
	return newTestRouter(t, uid, func(r *gin.Engine) {
		r.POST("/projects", h.CreateProject)
		r.GET("/projects", h.ListProjects)
		r.GET("/projects/:id", h.GetProject)
		r.PATCH("/projects/:id", h.UpdateProject)
		r.DELETE("/projects/:id", h.DeleteProject)
	})
}

func TestProjectHandler_CreateProject(t *testing.T) {
	tests := []struct {
		name           string
		uid            int64
		body           string
		setup          func(*MockProjectService)
		expectedStatus int
	}{
		{
			name: "success",
			uid:  3,
			body: `{"name":"churn","description":"weekly"}`,
			setup: func(svc *MockProjectService) {
				svc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateProjectInput) bool {
					return in.UserID == 3 && in.Name == "churn" && in.Description != nil && *in.Description == "weekly"
				})).Return(&model.Project{ID: 1, Name: "churn", UserID: 3}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			uid:            3,
			body:           `{"description":"weekly"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthenticated",
			body:           `{"name":"churn"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "blank name rejected by service",
			uid:  3,
			body: `{"name":"   "}`,
			setup: func(svc *MockProjectService) {
				svc.On("Create", mock.Anything, mock.Anything).Return(nil, service.ErrProjectNameRequired)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockProjectService{}
			if tt.setup != nil {
				tt.setup(svc)
			}
			rec := doJSON(projectRouter(t, tt.uid, svc), http.MethodPost, "/projects", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestProjectHandler_ListProjects(t *testing.T) {
	svc := &MockProjectService{}
	svc.On("List", mock.Anything, service.ListProjectsInput{UserID: 3, Limit: 20}).
		Return(&service.ListProjectsOutput{Items: []*model.Project{{ID: 1}}, NextCursor: "abc", HasMore: true}, nil)
	svc.On("List", mock.Anything, service.ListProjectsInput{UserID: 3, Limit: 5, Cursor: "abc"}).
		Return(&service.ListProjectsOutput{Items: []*model.Project{}}, nil)
	svc.On("List", mock.Anything, service.ListProjectsInput{UserID: 3, Limit: 5, Cursor: "garbage"}).
		Return(nil, service.ErrInvalidCursor)
	r := projectRouter(t, 3, svc)

	rec := doJSON(r, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.True(t, data["has_more"].(bool))
	assert.Equal(t, "abc", data["next_cursor"])
	assert.Len(t, data["items"].([]interface{}), 1)

	rec = doJSON(r, http.MethodGet, "/projects?limit=5&cursor=abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/projects?limit=5&cursor=garbage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/projects?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestProjectHandler_GetProject(t *testing.T) {
	svc := &MockProjectService{}
	svc.On("Get", mock.Anything, int64(3), int64(1)).Return(&model.Project{ID: 1, UserID: 3}, nil)
	svc.On("Get", mock.Anything, int64(3), int64(2)).Return(nil, service.ErrForbidden)
	svc.On("Get", mock.Anything, int64(3), int64(9)).Return(nil, service.ErrProjectNotFound)
	svc.On("Get", mock.Anything, int64(3), int64(10)).Return(nil, errors.New("db down"))
	r := projectRouter(t, 3, svc)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/projects/1", "").Code)
	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodGet, "/projects/2", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/projects/9", "").Code)
	assert.Equal(t, http.StatusInternalServerError, doJSON(r, http.MethodGet, "/projects/10", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/projects/abc", "").Code)
	svc.AssertExpectations(t)
}

func TestProjectHandler_UpdateAndDelete(t *testing.T) {
	svc := &MockProjectService{}
	svc.On("Update", mock.Anything, mock.MatchedBy(func(in service.UpdateProjectInput) bool {
		return in.ActorID == 3 && in.ID == 1 && in.Name != nil && *in.Name == "renamed" && in.Description == nil
	})).Return(&model.Project{ID: 1, Name: "renamed"}, nil)
	svc.On("Delete", mock.Anything, int64(3), int64(1)).Return(nil)
	svc.On("Delete", mock.Anything, int64(3), int64(2)).Return(service.ErrForbidden)
	r := projectRouter(t, 3, svc)

	rec := doJSON(r, http.MethodPatch, "/projects/1", `{"name":"renamed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeResponse(t, rec).Data.(map[string]interface{})["name"])

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/projects/1", "").Code)
	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodDelete, "/projects/2", "").Code)
	svc.AssertExpectations(t)
}
