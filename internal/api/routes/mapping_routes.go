package routes

// registerMappingRoutes регистрирует маршруты разрешения терминов
func (r *Router) registerMappingRoutes() {
	api := r.engine.Group("/api")

	// Канонические маппинги
	api.GET("/mappings", r.mappingHandler.HandleListMappings)
	api.POST("/mappings", r.mappingHandler.HandleCreateMapping)
	api.DELETE("/mappings", r.mappingHandler.HandleDeleteAllMappings)
	api.DELETE("/mappings/:id", r.mappingHandler.HandleDeleteMapping)

	// Неразрешенные термины и история решений
	api.GET("/unmapped", r.mappingHandler.HandleListUnmapped)
	api.GET("/learned", r.mappingHandler.HandleListLearned)
	api.DELETE("/learned", r.mappingHandler.HandleDeleteLearned)

	// Подсказки и пакетное разрешение
	api.GET("/suggestions", r.mappingHandler.HandleSuggestions)
	api.POST("/batch-resolution", r.mappingHandler.HandleBatchResolution)

	// Кэш
	api.POST("/cache/prefetch", r.mappingHandler.HandleCachePrefetch)
	api.GET("/cache/stats", r.mappingHandler.HandleCacheStats)
	api.POST("/cache/clear", r.mappingHandler.HandleCacheClear)

	// Сервисные маршруты
	api.GET("/similarity/compare", r.mappingHandler.HandleSimilarityCompare)
	api.GET("/health", r.mappingHandler.HandleHealth)
}
