package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

type AuditLogHandler struct {
	svc      service.AuditService
	projects service.ProjectService
	datasets service.DatasetService
}

func NewAuditLogHandler(s service.AuditService, projects service.ProjectService, datasets service.DatasetService) *AuditLogHandler {
	return &AuditLogHandler{svc: s, projects: projects, datasets: datasets}
}

type ListAuditLogsReq struct {
	Limit      int    `form:"limit,default=20" json:"limit" binding:"min=1,max=200" example:"20"`
	Cursor     string `form:"cursor" json:"cursor"`
	EntityType string `form:"entity_type" json:"entity_type" binding:"required_with=EntityID" example:"dataset"`
	EntityID   string `form:"entity_id" json:"entity_id" binding:"required_with=EntityType" example:"3"`
}

// ListAuditLogs godoc
//
//	@Summary		List audit logs
//	@Description	The current user's audit trail, newest first. With entity_type and entity_id, the trail of that entity instead.
//	@Description	Project and dataset trails require ownership. Other entity types only return entries the current user wrote.
//	@Tags			audit
//	@Produce		json
//	@Param			limit		query	integer	false	"Page size, default 20. Max 200."
//	@Param			cursor		query	string	false	"Cursor from the previous page"
//	@Param			entity_type	query	string	false	"Entity type, e.g. dataset"
//	@Param			entity_id	query	string	false	"Entity ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListAuditLogsOutput}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/audit-logs [get]
func (h *AuditLogHandler) ListAuditLogs(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := ListAuditLogsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	if req.EntityType != "" {
		items, err := h.entityTrail(c.Request.Context(), uid, req)
		if err != nil {
			renderErr(c, err)
			return
		}
		c.JSON(http.StatusOK, serializer.Response{Data: service.ListAuditLogsOutput{Items: items}})
		return
	}

	out, err := h.svc.ListByUser(c.Request.Context(), service.ListAuditLogsInput{
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

func (h *AuditLogHandler) entityTrail(ctx context.Context, uid int64, req ListAuditLogsReq) ([]*model.AuditLog, error) {
	if req.EntityType != "project" && req.EntityType != "dataset" {
		return h.svc.ListByEntityForUser(ctx, uid, req.EntityType, req.EntityID, req.Limit)
	}

	id, err := strconv.ParseInt(req.EntityID, 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidID
	}
	if req.EntityType == "project" {
		_, err = h.projects.Get(ctx, uid, id)
	} else {
		_, err = h.datasets.Get(ctx, uid, id)
	}
	if err != nil {
		return nil, err
	}
	return h.svc.ListByEntity(ctx, req.EntityType, req.EntityID, req.Limit)
}
