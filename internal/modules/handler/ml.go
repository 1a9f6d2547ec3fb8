package handler

import (
	"net/http"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

type MLHandler struct {
	svc service.MLService
}

func NewMLHandler(s service.MLService) *MLHandler {
	return &MLHandler{svc: s}
}

type TrainReq struct {
	DatasetID       int64          `json:"dataset_id" binding:"required,min=1" example:"3"`
	ModelType       string         `json:"model_type" binding:"required" example:"random_forest"`
	Features        []string       `json:"features" example:"units,region"`
	Target          string         `json:"target" binding:"required" example:"price"`
	Hyperparameters map[string]any `json:"hyperparameters"`
}

// Train godoc
//
//	@Summary		Train model
//	@Description	Queue a train_model job against a dataset
//	@Tags			ml
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.TrainReq	true	"Train payload"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=model.Job}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/ml/train [post]
func (h *MLHandler) Train(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := TrainReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	j, err := h.svc.Train(c.Request.Context(), service.TrainInput{
		ActorID:         uid,
		DatasetID:       req.DatasetID,
		ModelType:       req.ModelType,
		Features:        req.Features,
		Target:          req.Target,
		Hyperparameters: req.Hyperparameters,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, serializer.Response{Data: j})
}

type PredictReq struct {
	DatasetID int64  `json:"dataset_id" binding:"required,min=1" example:"3"`
	ModelID   string `json:"model_id" binding:"required" example:"rf-20240101"`
	Input     any    `json:"input" swaggertype:"object"`
}

// Predict godoc
//
//	@Summary		Predict
//	@Description	Queue a predict job against a trained model
//	@Tags			ml
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.PredictReq	true	"Predict payload"
//	@Security		BearerAuth
//	@Success		202	{object}	serializer.Response{data=model.Job}
//	@Failure		400	{object}	serializer.Response
//	@Failure		403	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/ml/predict [post]
func (h *MLHandler) Predict(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}
	req := PredictReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	j, err := h.svc.Predict(c.Request.Context(), service.PredictInput{
		ActorID:   uid,
		DatasetID: req.DatasetID,
		ModelID:   req.ModelID,
		Input:     req.Input,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, serializer.Response{Data: j})
}
