package handler

import (
	"bytes"
	"net/http"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type JobHandler struct {
	svc service.JobService
}

func NewJobHandler(s service.JobService) *JobHandler {
	return &JobHandler{svc: s}
}

// nullJSON treats an absent or literal null body field as empty.
func nullJSON(v datatypes.JSON) datatypes.JSON {
	if len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	return v
}

type CreateJobReq struct {
	Type string         `json:"type" binding:"required" example:"process_dataset"`
	Data datatypes.JSON `json:"data" swaggertype:"object"`
}

// CreateJob godoc
//
//	@Summary		Create job
//	@Description	Queue a pending job
//	@Tags			job
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateJobReq	true	"CreateJob payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Job}
//	@Failure		400	{object}	serializer.Response
//	@Router			/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := CreateJobReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	j, err := h.svc.Create(c.Request.Context(), service.CreateJobInput{
		Type:   req.Type,
		Data:   nullJSON(req.Data),
		UserID: &uid,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: j})
}

type ListJobsReq struct {
	Limit int `form:"limit" json:"limit" binding:"omitempty,min=0,max=200" example:"10"`
}

// ListPendingJobs godoc
//
//	@Summary		List pending jobs
//	@Description	Oldest pending jobs first
//	@Tags			job
//	@Produce		json
//	@Param			limit	query	integer	false	"Max jobs, defaults to the worker poll batch"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Job}
//	@Router			/jobs [get]
func (h *JobHandler) ListPendingJobs(c *gin.Context) {
	req := ListJobsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	items, err := h.svc.ListPending(c.Request.Context(), req.Limit)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// GetJob godoc
//
//	@Summary		Get job
//	@Tags			job
//	@Produce		json
//	@Param			id	path	string	true	"Job ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Job}
//	@Failure		404	{object}	serializer.Response
//	@Router			/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	j, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: j})
}

type UpdateJobReq struct {
	Status string         `json:"status" binding:"required" example:"completed"`
	Result datatypes.JSON `json:"result" swaggertype:"object"`
	Error  string         `json:"error" example:""`
}

// UpdateJob godoc
//
//	@Summary		Update job status
//	@Description	Move a job along pending -> processing -> completed/failed. A failed job needs an error.
//	@Tags			job
//	@Accept			json
//	@Produce		json
//	@Param			id		path	string				true	"Job ID"	format(uuid)
//	@Param			payload	body	handler.UpdateJobReq	true	"UpdateJob payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Job}
//	@Failure		400	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Failure		409	{object}	serializer.Response
//	@Router			/jobs/{id} [patch]
func (h *JobHandler) UpdateJob(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := UpdateJobReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	j, err := h.svc.UpdateStatus(c.Request.Context(), service.UpdateJobStatusInput{
		ID:     c.Param("id"),
		Status: model.JobStatus(req.Status),
		Result: nullJSON(req.Result),
		Error:  req.Error,
		UserID: &uid,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: j})
}
