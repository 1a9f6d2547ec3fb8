package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

// uploadFormSlack covers multipart boundaries, headers and the text fields
// sent alongside the file.
const uploadFormSlack = 1 << 20

type DatasetHandler struct {
	svc            service.DatasetService
	maxUploadBytes int64
}

// NewDatasetHandler bounds upload request bodies to maxUploadBytes plus form
// overhead. A non-positive maxUploadBytes leaves them unbounded.
func NewDatasetHandler(s service.DatasetService, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{svc: s, maxUploadBytes: maxUploadBytes}
}

type UploadDatasetReq struct {
	ProjectID   int64   `form:"project_id" json:"project_id" binding:"required,min=1" example:"7"`
	Name        string  `form:"name" json:"name" example:"Q1 sales"`
	Description *string `form:"description" json:"description" example:"exported from the warehouse"`
}

// UploadDataset godoc
//
//	@Summary		Upload dataset
//	@Description	Upload a CSV or JSON file into a project. Row and column counts are estimated and a process_dataset job is queued.
//	@Tags			dataset
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Dataset file"
//	@Param			project_id	formData	integer	true	"Target project ID"
//	@Param			name		formData	string	false	"Display name, defaults to the file name"
//	@Param			description	formData	string	false	"Description"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=service.UploadDatasetOutput}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/datasets/upload [post]
func (h *DatasetHandler) UploadDataset(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+uploadFormSlack)
	}

	req := UploadDatasetReq{}
	if err := c.ShouldBind(&req); err != nil {
		if isBodyTooLarge(err) {
			renderErr(c, service.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			renderErr(c, service.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr("file is required", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("unreadable file", err))
		return
	}
	defer f.Close()

	out, err := h.svc.Upload(c.Request.Context(), service.UploadDatasetInput{
		ActorID:     uid,
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		Filename:    fh.Filename,
		Size:        fh.Size,
		Content:     f,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: out})
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// ListProjectDatasets godoc
//
//	@Summary		List datasets
//	@Description	List the datasets of a project, newest first
//	@Tags			dataset
//	@Produce		json
//	@Param			id	path	integer	true	"Project ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Dataset}
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/projects/{id}/datasets [get]
func (h *DatasetHandler) ListProjectDatasets(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.ListByProject(c.Request.Context(), uid, projectID)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// GetDataset godoc
//
//	@Summary		Get dataset
//	@Tags			dataset
//	@Produce		json
//	@Param			id	path	integer	true	"Dataset ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Dataset}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/datasets/{id} [get]
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ds, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: ds})
}

// DeleteDataset godoc
//
//	@Summary		Delete dataset
//	@Description	Delete a dataset row together with its stored file
//	@Tags			dataset
//	@Produce		json
//	@Param			id	path	integer	true	"Dataset ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/datasets/{id} [delete]
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), uid, id); err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{})
}

// PreviewDataset godoc
//
//	@Summary		Preview dataset
//	@Description	Return the leading rows of a CSV or JSON dataset
//	@Tags			dataset
//	@Produce		json
//	@Param			id		path	integer	true	"Dataset ID"
//	@Param			rows	query	integer	false	"Rows to return, default 10, max 1000"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.DatasetPreview}
//	@Failure		400	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/datasets/{id}/preview [get]
func (h *DatasetHandler) PreviewDataset(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows := service.DefaultPreviewRows
	if raw := c.Query("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("rows must be an integer", err))
			return
		}
		rows = n
	}

	out, err := h.svc.Preview(c.Request.Context(), uid, id, rows)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// DownloadDataset godoc
//
//	@Summary		Download dataset
//	@Description	Stream the raw bytes of the stored file
//	@Tags			dataset
//	@Produce		octet-stream
//	@Param			id	path	integer	true	"Dataset ID"
//	@Security		BearerAuth
//	@Success		200	{file}		binary
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/datasets/{id}/download [get]
func (h *DatasetHandler) DownloadDataset(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	content, err := h.svc.Open(c.Request.Context(), uid, id)
	if err != nil {
		renderErr(c, err)
		return
	}
	defer content.Body.Close()

	c.DataFromReader(http.StatusOK, content.Dataset.SizeB, content.ContentType, content.Body, map[string]string{
		"Content-Disposition":    content.Disposition,
		"X-Content-Type-Options": "nosniff",
	})
}
