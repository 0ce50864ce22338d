package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piosteiner/adenai-map/internal/config"
	"github.com/piosteiner/adenai-map/internal/handler"
	"github.com/piosteiner/adenai-map/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, maps *handler.MapHandler, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Adenai map API is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter))
	{
		entities := api.Group("/entities")
		{
			entities.GET("", maps.ListEntities)
			entities.GET("/:id/path", maps.GetEntityPath)
		}

		sceneGroup := api.Group("/scene")
		{
			sceneGroup.GET("", maps.GetScene)
			sceneGroup.GET("/geojson", maps.GetSceneGeoJSON)
			sceneGroup.POST("/entities/:id/show", maps.ShowEntity)
			sceneGroup.POST("/entities/:id/hide", maps.HideEntity)
			sceneGroup.GET("/entities/:id/visible", maps.GetVisibility)
			sceneGroup.POST("/show-all", maps.ShowAll)
			sceneGroup.POST("/hide-all", maps.HideAll)
			sceneGroup.POST("/viewport", maps.SetViewport)
			sceneGroup.POST("/objects/:handle/:event", maps.DispatchEvent)
		}

		api.GET("/layout/spiral", maps.GetSpiralLayout)
		api.GET("/duration", maps.GetDuration)

		if cfg.AdminEnabled() {
			admin := api.Group("/admin")
			admin.Use(middleware.Auth(cfg.JWTSecret, middleware.AdminRole))
			{
				admin.POST("/reload", maps.Reload)
			}
		}
	}

	return r
}
