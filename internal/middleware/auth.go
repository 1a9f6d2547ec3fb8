package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/datapilot-io/datapilot/internal/modules/handler"
	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
)

// UserAuth authenticates bearer JWTs, canonicalizes the identity they carry and
// sets the int64 user id in the context under handler.ContextUserID.
func UserAuth(tokens service.TokenIssuer, resolver service.IdentityResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx, authSpan := otel.Tracer("middleware").Start(ctx, "user_auth",
			trace.WithAttributes(attribute.String("middleware", "user_auth")))

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		claims, err := tokens.Parse(raw)
		if err != nil {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		uid, err := resolver.Resolve(ctx, service.Session{UserID: claims.UID, Email: claims.Email})
		if err != nil {
			if errors.Is(err, service.ErrUnresolvableIdentity) {
				authSpan.SetAttributes(attribute.Bool("authenticated", false))
				authSpan.End()
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
			authSpan.RecordError(err)
			authSpan.End()
			log.Error("resolve identity failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, serializer.DBErr("", err))
			return
		}

		// Set user_id on the request span for telemetry filtering
		rootSpan := trace.SpanFromContext(c.Request.Context())
		if rootSpan.SpanContext().IsValid() {
			rootSpan.SetAttributes(attribute.Int64("user_id", uid))
		}

		authSpan.SetAttributes(
			attribute.Int64("user_id", uid),
			attribute.Bool("authenticated", true),
		)
		authSpan.End()

		c.Set(handler.ContextUserID, uid)
		c.Next()
	}
}
