package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/handler"
	"github.com/juan-barragan/oraccio/internal/middleware"
	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/internal/service"
	"github.com/juan-barragan/oraccio/pkg/config"
	"github.com/juan-barragan/oraccio/pkg/logger"
	corsmiddleware "github.com/juan-barragan/oraccio/pkg/middleware/cors"
	reqidmiddleware "github.com/juan-barragan/oraccio/pkg/middleware/requestid"
)

type routeDeps struct {
	logger      *zap.Logger
	auth        middleware.TokenValidator
	metrics     *service.MetricsService
	authH       *handler.AuthHandler
	timetableH  *handler.TimetableHandler
	exportH     *handler.ExportHandler
	metricsH    *handler.MetricsHandler
	jobsEnabled bool
}

func newRouter(cfg *config.Config, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.metricsH.Health)
	r.GET("/ready", deps.metricsH.Ready)
	r.GET("/metrics", deps.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/token", deps.authH.Token)
	api.GET("/exports/:token", deps.exportH.Download)

	secured := api.Group("", middleware.JWT(deps.auth))
	admin := middleware.RequireRoles(models.RoleAdmin)
	reader := middleware.RequireRoles(models.RoleAdmin, models.RoleViewer)

	timetables := secured.Group("/timetables")
	timetables.POST("/generate", admin, deps.timetableH.Generate)
	timetables.POST("/resolve", admin, deps.timetableH.Resolve)
	timetables.GET("/metrics", reader, deps.metricsH.Snapshot)

	if deps.jobsEnabled {
		jobs := timetables.Group("/jobs")
		jobs.POST("", admin, deps.timetableH.Submit)
		jobs.POST("/upload", admin, deps.timetableH.Upload)
		jobs.GET("", reader, deps.timetableH.List)
		jobs.GET("/:id", reader, deps.timetableH.Status)
		jobs.GET("/:id/result", reader, deps.timetableH.Result)
		jobs.DELETE("/:id", admin, deps.timetableH.Delete)
		jobs.POST("/:id/exports", reader, deps.timetableH.Export)
	}

	return r
}
