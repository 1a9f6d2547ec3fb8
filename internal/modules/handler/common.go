package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/gin-gonic/gin"
)

// ContextUserID is the gin context key holding the resolved int64 user id.
const ContextUserID = "user_id"

var (
	errMissingUser = errors.New("authenticated user missing from context")
	errInvalidID   = errors.New("invalid id")
)

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, service.ErrUnresolvableIdentity),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, service.ErrDatasetNotFound),
		errors.Is(err, service.ErrDatasetFileMissing),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrFeatureFlagNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrFeatureFlagExists),
		errors.Is(err, service.ErrTransitionConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrProjectNameRequired),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrUnsupportedFileType),
		errors.Is(err, service.ErrMalformedFile),
		errors.Is(err, service.ErrJobTypeRequired),
		errors.Is(err, service.ErrInvalidJobStatus),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrFailedWithoutError),
		errors.Is(err, service.ErrCompletedWithError),
		errors.Is(err, service.ErrProcessingWithError),
		errors.Is(err, service.ErrModelTypeRequired),
		errors.Is(err, service.ErrTargetRequired),
		errors.Is(err, service.ErrModelIDRequired),
		errors.Is(err, service.ErrInvalidFlagName),
		errors.Is(err, service.ErrInvalidCursor),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// renderErr writes err with the status its sentinel maps to.
func renderErr(c *gin.Context, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		c.JSON(status, serializer.DBErr("", err))
	case http.StatusBadRequest:
		c.JSON(status, serializer.ParamErr(err.Error(), err))
	default:
		c.JSON(status, serializer.Err(status, err.Error(), nil))
	}
}

// actorID returns the user id set by the auth middleware.
func actorID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// mustActor writes 401 and returns false when no user is attached.
func mustActor(c *gin.Context) (int64, bool) {
	id, ok := actorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(errMissingUser.Error()))
	}
	return id, ok
}

// idParam parses a positive integer path parameter, writing 400 on failure.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(errInvalidID.Error(), errInvalidID))
		return 0, false
	}
	return id, true
}
