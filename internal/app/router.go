package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/api/handlers"
	"payflow.io/payflow/internal/api/middleware"
	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/pkg/metrics"
)

// defaultAllowedOrigins is used when no valid origin is configured.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, provider *metrics.Provider) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), middleware.RequestID(), cors.New(buildCORSConfig(cfg)))
	if provider != nil {
		router.Use(provider.HTTPMiddleware())
		router.GET("/metrics", gin.WrapH(provider.Handler()))
	}
	router.Use(middleware.ErrorHandler())
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	level := gin.WrapH(logger.LevelHandler())
	router.GET("/log/level", level)
	router.PUT("/log/level", level)

	server.RegisterHealthRoutes(router)
	server.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// buildCORSConfig turns the server settings into a gin-contrib/cors config.
// A "*" origin is honoured only with UnsafeAllowAllOrigins, which also
// disables credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	out := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		logger.Warn("CORS allows all origins; credentials are disabled")
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	logger.Debug("CORS enabled", zap.Strings("origins", origins))

	out.AllowOrigins = origins
	out.AllowCredentials = cfg.Server.AllowCredentials
	return out
}
