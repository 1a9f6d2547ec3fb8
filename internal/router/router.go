package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/datapilot-io/datapilot/docs"
	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/middleware"
	"github.com/datapilot-io/datapilot/internal/modules/handler"
	"github.com/datapilot-io/datapilot/internal/modules/serializer"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/datapilot-io/datapilot/internal/telemetry"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	Tokens   service.TokenIssuer
	Resolver service.IdentityResolver

	AuthHandler        *handler.AuthHandler
	ProjectHandler     *handler.ProjectHandler
	DatasetHandler     *handler.DatasetHandler
	JobHandler         *handler.JobHandler
	MLHandler          *handler.MLHandler
	FeatureFlagHandler *handler.FeatureFlagHandler
	AuditLogHandler    *handler.AuditLogHandler
}

func NewRouter(d RouterDeps) (*gin.Engine, error) {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// multipart bodies beyond this spill to temp files
	r.MaxMultipartMemory = 8 << 20

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(telemetry.GinMiddleware(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(telemetry.TraceIDMiddleware())
	}

	r.Use(middleware.ZapLogger(d.Log))
	r.Use(middleware.CORS(d.Config.IsProduction(), d.Config.App.AllowedOrigins))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	// public
	auth := v1.Group("/auth")
	{
		auth.POST("/register", d.AuthHandler.Register)
		auth.POST("/login", d.AuthHandler.Login)
	}

	authed := v1.Group("")
	authed.Use(middleware.UserAuth(d.Tokens, d.Resolver, d.Log))
	{
		authed.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })
		authed.GET("/auth/me", d.AuthHandler.Me)

		projects := authed.Group("/projects")
		{
			projects.POST("", d.ProjectHandler.CreateProject)
			projects.GET("", d.ProjectHandler.ListProjects)
			projects.GET("/:id", d.ProjectHandler.GetProject)
			projects.PATCH("/:id", d.ProjectHandler.UpdateProject)
			projects.DELETE("/:id", d.ProjectHandler.DeleteProject)
			projects.GET("/:id/datasets", d.DatasetHandler.ListProjectDatasets)
		}

		datasets := authed.Group("/datasets")
		{
			datasets.POST("/upload", d.DatasetHandler.UploadDataset)
			datasets.GET("/:id", d.DatasetHandler.GetDataset)
			datasets.DELETE("/:id", d.DatasetHandler.DeleteDataset)
			datasets.GET("/:id/preview", d.DatasetHandler.PreviewDataset)
			datasets.GET("/:id/download", d.DatasetHandler.DownloadDataset)
		}

		jobs := authed.Group("/jobs")
		{
			jobs.POST("", d.JobHandler.CreateJob)
			jobs.GET("", d.JobHandler.ListPendingJobs)
			jobs.GET("/:id", d.JobHandler.GetJob)
			jobs.PATCH("/:id", d.JobHandler.UpdateJob)
		}

		ml := authed.Group("/ml")
		{
			ml.POST("/train", d.MLHandler.Train)
			ml.POST("/predict", d.MLHandler.Predict)
		}

		flags := authed.Group("/feature-flags")
		{
			flags.GET("", d.FeatureFlagHandler.ListFeatureFlags)
			flags.POST("", d.FeatureFlagHandler.CreateFeatureFlag)
			flags.GET("/:name", d.FeatureFlagHandler.GetFeatureFlag)
			flags.PATCH("/:name", d.FeatureFlagHandler.UpdateFeatureFlag)
		}

		authed.GET("/audit-logs", d.AuditLogHandler.ListAuditLogs)
	}
	return r, nil
}
