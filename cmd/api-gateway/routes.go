package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timeblock-api/internal/middleware"
	"github.com/noah-isme/timeblock-api/internal/service"
	"github.com/noah-isme/timeblock-api/pkg/config"
	"github.com/noah-isme/timeblock-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timeblock-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timeblock-api/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics     *service.MetricsService
	auth        *service.AuthService
	health      *handler.MetricsHandler
	categories  *handler.CategoryHandler
	timeBlocks  *handler.TimeBlockHandler
	filters     *handler.FilterHandler
	calendar    *handler.CalendarHandler
	analytics   *handler.AnalyticsHandler
	preferences *handler.PreferenceHandler
	authHandler *handler.AuthHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(d.metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", d.health.Health)
	r.GET("/ready", d.health.Ready)
	r.GET("/metrics", d.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	// signed links carry their own authorization
	api.GET("/exports/:token", d.analytics.Download)

	secured := api.Group("", internalmiddleware.JWT(d.auth))
	secured.GET("/categories", d.categories.List)

	blocks := secured.Group("/time-blocks")
	blocks.GET("", d.timeBlocks.List)
	blocks.GET("/history", d.timeBlocks.History)
	blocks.GET("/:id", d.timeBlocks.Get)
	blocks.POST("", d.timeBlocks.Create)
	blocks.PUT("/:id", d.timeBlocks.Update)
	blocks.PATCH("/:id/schedule", d.timeBlocks.Reschedule)
	blocks.DELETE("/:id", d.timeBlocks.Delete)

	filters := secured.Group("/filters")
	filters.GET("", d.filters.Get)
	filters.POST("/reset", d.filters.Reset)
	filters.POST("/:category/toggle", d.filters.Toggle)
	filters.PUT("/:category", d.filters.Set)

	secured.GET("/calendar", d.calendar.Events)
	secured.POST("/calendar/external/refresh", d.calendar.RefreshExternal)

	analytics := secured.Group("/analytics")
	analytics.GET("/categories", d.analytics.Categories)
	analytics.GET("/system", d.analytics.System)
	analytics.GET("/export", d.analytics.Export)
	analytics.POST("/exports", d.analytics.StoreExport)

	secured.GET("/preferences", d.preferences.Get)
	secured.PUT("/preferences", d.preferences.Update)

	secured.GET("/auth/me", d.authHandler.Me)
	secured.POST("/auth/logout", d.authHandler.Logout)

	return r
}
