package handler

import (
	"net/http"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	svc service.ProjectService
}

func NewProjectHandler(s service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: s}
}

type CreateProjectReq struct {
	Name        string  `json:"name" binding:"required" example:"churn analysis"`
	Description *string `json:"description" example:"weekly churn model inputs"`
}

// CreateProject godoc
//
//	@Summary		Create project
//	@Description	Create a project owned by the current user
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateProjectReq	true	"CreateProject payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Project}
//	@Failure		400	{object}	serializer.Response
//	@Router			/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := CreateProjectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	p, err := h.svc.Create(c.Request.Context(), service.CreateProjectInput{
		UserID:      uid,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: p})
}

type ListProjectsReq struct {
	Limit  int    `form:"limit,default=20" json:"limit" binding:"min=1,max=200" example:"20"`
	Cursor string `form:"cursor" json:"cursor" example:"MTcwMDAwMDAwMDAwMDAwMDAwMDoxMg"`
}

// ListProjects godoc
//
//	@Summary		List projects
//	@Description	List the current user's projects, most recently updated first
//	@Tags			project
//	@Produce		json
//	@Param			limit	query	integer	false	"Page size, default 20. Max 200."
//	@Param			cursor	query	string	false	"Cursor from the previous page"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListProjectsOutput}
//	@Failure		400	{object}	serializer.Response
//	@Router			/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := ListProjectsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.List(c.Request.Context(), service.ListProjectsInput{
		UserID: uid,
		Limit:  req.Limit,
		Cursor: req.Cursor,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// GetProject godoc
//
//	@Summary		Get project
//	@Tags			project
//	@Produce		json
//	@Param			id	path	integer	true	"Project ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: p})
}

type UpdateProjectReq struct {
	Name        *string `json:"name" example:"churn analysis v2"`
	Description *string `json:"description" example:"now with Q3 data"`
}

// UpdateProject godoc
//
//	@Summary		Update project
//	@Description	Update the name and/or description of a project
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			id		path	integer						true	"Project ID"
//	@Param			payload	body	handler.UpdateProjectReq	true	"UpdateProject payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/projects/{id} [patch]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	req := UpdateProjectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	p, err := h.svc.Update(c.Request.Context(), service.UpdateProjectInput{
		ActorID:     uid,
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: p})
}

// DeleteProject godoc
//
//	@Summary		Delete project
//	@Description	Delete a project with its datasets and their stored files
//	@Tags			project
//	@Produce		json
//	@Param			id	path	integer	true	"Project ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
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
