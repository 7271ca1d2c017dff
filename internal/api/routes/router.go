package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	mappinghandler "surveyserver/internal/api/handlers/mapping"
	"surveyserver/internal/config"
	"surveyserver/server/middleware"
)

// Router собирает gin engine с цепочкой middleware и маршрутами
type Router struct {
	engine         *gin.Engine
	mappingHandler *mappinghandler.Handler
}

// NewRouter создает роутер с полной цепочкой middleware
func NewRouter(cfg *config.Config, handler *mappinghandler.Handler, logger *slog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(
		middleware.GinRequestIDMiddleware(),
		middleware.GinRecoveryMiddleware(logger),
		middleware.GinLoggerMiddleware(logger),
		middleware.GinCORSMiddleware(),
		middleware.GinGzipMiddleware(),
		middleware.GinRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	router := &Router{
		engine:         engine,
		mappingHandler: handler,
	}
	router.registerMappingRoutes()
	return router
}

// Engine возвращает собранный gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
