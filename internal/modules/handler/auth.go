package handler

import (
	"net/http"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc service.UserService
}

func NewAuthHandler(s service.UserService) *AuthHandler {
	return &AuthHandler{svc: s}
}

type RegisterReq struct {
	Name     string `json:"name" binding:"required,min=2" example:"Ada Lovelace"`
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"correct horse battery"`
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create a user account
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		handler.RegisterReq	true	"Register payload"
//	@Success		201		{object}	serializer.Response{data=model.User}
//	@Failure		400		{object}	serializer.Response
//	@Failure		409		{object}	serializer.Response
//	@Router			/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	req := RegisterReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: u})
}

type LoginReq struct {
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// Login godoc
//
//	@Summary		Login
//	@Description	Exchange credentials for a bearer token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		handler.LoginReq	true	"Login payload"
//	@Success		200		{object}	serializer.Response{data=service.LoginOutput}
//	@Failure		400		{object}	serializer.Response
//	@Failure		401		{object}	serializer.Response
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	req := LoginReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.Login(c.Request.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// Me godoc
//
//	@Summary		Current user
//	@Description	Get the user the bearer token resolves to
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.User}
//	@Failure		401	{object}	serializer.Response
//	@Failure		404	{object}	serializer.Response
//	@Router			/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	uid, ok := mustActor(c)
	if !ok {
		return
	}

	u, err := h.svc.Get(c.Request.Context(), uid)
	if err != nil {
		renderErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: u})
}
