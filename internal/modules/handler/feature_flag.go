package handler

import (
	"net/http"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

type FeatureFlagHandler struct {
	svc service.FeatureFlagService
}

func NewFeatureFlagHandler(s service.FeatureFlagService) *FeatureFlagHandler {
	return &FeatureFlagHandler{svc: s}
}

// ListFeatureFlags godoc
//
//	@Summary		List feature flags
//	@Description	List flags with environment overrides applied
//	@Tags			feature-flag
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.FeatureFlag}
//	@Router			/feature-flags [get]
func (h *FeatureFlagHandler) ListFeatureFlags(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type CreateFeatureFlagReq struct {
	Name        string  `json:"name" binding:"required,flagname" example:"beta_features"`
	Description *string `json:"description" example:"early access UI"`
	Enabled     bool    `json:"enabled" example:"false"`
}

// CreateFeatureFlag godoc
//
//	@Summary		Create feature flag
//	@Tags			feature-flag
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateFeatureFlagReq	true	"CreateFeatureFlag payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.FeatureFlag}
//	@Failure		400	{object}	serializer.Response
//	@Failure		409	{object}	serializer.Response
//	@Router			/feature-flags [post]
func (h *FeatureFlagHandler) CreateFeatureFlag(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := CreateFeatureFlagReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	f, err := h.svc.Create(c.Request.Context(), service.CreateFeatureFlagInput{
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
		UserID:      &uid,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: f})
}

// GetFeatureFlag godoc
//
//	@Summary		Get feature flag
//	@Tags			feature-flag
//	@Produce		json
//	@Param			name	path	string	true	"Flag name"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.FeatureFlag}
//	@Failure		404	{object}	serializer.Response
//	@Router			/feature-flags/{name} [get]
func (h *FeatureFlagHandler) GetFeatureFlag(c *gin.Context) {
	f, err := h.svc.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: f})
}

type UpdateFeatureFlagReq struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

// UpdateFeatureFlag godoc
//
//	@Summary		Toggle feature flag
//	@Description	Set the stored value. An environment override still wins when reading.
//	@Tags			feature-flag
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string							true	"Flag name"
//	@Param			payload	body	handler.UpdateFeatureFlagReq	true	"UpdateFeatureFlag payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.FeatureFlag}
//	@Failure		400	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/feature-flags/{name} [patch]
func (h *FeatureFlagHandler) UpdateFeatureFlag(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := UpdateFeatureFlagReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	f, err := h.svc.SetEnabled(c.Request.Context(), service.SetFeatureFlagInput{
		Name:    c.Param("name"),
		Enabled: *req.Enabled,
		UserID:  &uid,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: f})
}
