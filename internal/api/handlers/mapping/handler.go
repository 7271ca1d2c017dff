package mapping

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appmapping "surveyserver/internal/application/mapping"
	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
	apperrors "surveyserver/server/errors"
	"surveyserver/server/middleware"
)

// Pinger проверка доступности хранилища для health check
type Pinger interface {
	Ping() error
}

// Handler HTTP обработчик операций разрешения терминов
type Handler struct {
	engine           *appmapping.CachedEngine
	store            Pinger
	defaultThreshold float64
	logger           *slog.Logger
}

// NewHandler создает обработчик
func NewHandler(engine *appmapping.CachedEngine, store Pinger, defaultThreshold float64, logger *slog.Logger) *Handler {
	return &Handler{
		engine:           engine,
		store:            store,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// respondError переводит ошибку в AppError и отдает единообразный ответ.
// Ошибки 5xx логируются с полным контекстом, пользователь видит только сообщение
func (h *Handler) respondError(c *gin.Context, err error) {
	reqID := middleware.GetRequestIDFromGin(c)

	var dup *mapping.DuplicateSourceEntryError
	if errors.As(err, &dup) {
		appErr := apperrors.NewConflictError(dup.Error(), dup)
		c.JSON(appErr.StatusCode(), gin.H{
			"error":       appErr.UserMessage(),
			"existing_id": dup.ExistingID,
			"request_id":  reqID,
		})
		return
	}

	appErr := toAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", appErr.Error(), "request_id", reqID)
	}
	c.JSON(appErr.StatusCode(), gin.H{"error": appErr.UserMessage(), "request_id": reqID})
}

// toAppError сопоставляет ошибки домена с таксономией AppError
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, mapping.ErrMappingNotFound):
		return apperrors.NewNotFoundError("mapping not found", err)
	case errors.Is(err, mapping.ErrInvalidEntityType):
		return apperrors.NewValidationError("invalid entity type", err)
	case errors.Is(err, mapping.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailableError("store unavailable", err)
	default:
		return apperrors.WrapError(err, "request failed")
	}
}

// entityTypeParam извлекает и валидирует entity_type из query
func entityTypeParam(c *gin.Context) (mapping.EntityType, bool) {
	et := mapping.EntityType(c.Query("entity_type"))
	if !et.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type must be one of specialty, region, provider_type, variable"})
		return "", false
	}
	return et, true
}

// HandleListMappings возвращает канонические маппинги
// GET /api/mappings?entity_type=&scope=
func (h *Handler) HandleListMappings(c *gin.Context) {
	et, ok := entityTypeParam(c)
	if !ok {
		return
	}

	mappings, err := h.engine.ListMappings(c.Request.Context(), et, c.Query("scope"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "count": len(mappings)})
}

// createMappingRequest тело запроса создания маппинга
type createMappingRequest struct {
	EntityType    mapping.EntityType `json:"entity_type" binding:"required"`
	Scope         string             `json:"scope"`
	CanonicalName string             `json:"canonical_name" binding:"required"`
	SourceEntries []struct {
		RawTerm      string `json:"raw_term" binding:"required"`
		SurveySource string `json:"survey_source" binding:"required"`
	} `json:"source_entries" binding:"required,min=1"`
}

// HandleCreateMapping привязывает сырые термины к каноническому имени
// POST /api/mappings
func (h *Handler) HandleCreateMapping(c *gin.Context) {
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewValidationError("invalid request body: "+err.Error(), err))
		return
	}
	if !req.EntityType.Valid() {
		h.respondError(c, mapping.ErrInvalidEntityType)
		return
	}

	entries := make([]mapping.SourceEntry, 0, len(req.SourceEntries))
	for _, e := range req.SourceEntries {
		entries = append(entries, mapping.SourceEntry{
			RawTerm:      e.RawTerm,
			SurveySource: e.SurveySource,
		})
	}

	m, err := h.engine.CreateMapping(c.Request.Context(), req.EntityType, req.Scope, req.CanonicalName, entries)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// HandleDeleteMapping удаляет маппинг по идентификатору
// DELETE /api/mappings/:id
func (h *Handler) HandleDeleteMapping(c *gin.Context) {
	deleted, err := h.engine.DeleteMapping(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// HandleDeleteAllMappings удаляет все маппинги типа сущности в scope
// DELETE /api/mappings?entity_type=&scope=
func (h *Handler) HandleDeleteAllMappings(c *gin.Context) {
	et, ok := entityTypeParam(c)
	if !ok {
		return
	}

	count, err := h.engine.DeleteAllMappings(c.Request.Context(), et, c.Query("scope"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": count})
}

// HandleListUnmapped возвращает неразрешенные термины
// GET /api/unmapped?entity_type=&scope=
func (h *Handler) HandleListUnmapped(c *gin.Context) {
	et, ok := entityTypeParam(c)
	if !ok {
		return
	}

	terms, err := h.engine.ListUnmapped(c.Request.Context(), et, c.Query("scope"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unmapped": terms, "count": len(terms)})
}

// HandleListLearned возвращает историю решений
// GET /api/learned?entity_type=&scope=
func (h *Handler) HandleListLearned(c *gin.Context) {
	et, ok := entityTypeParam(c)
	if !ok {
		return
	}

	learned, err := h.engine.ListLearned(c.Request.Context(), et, c.Query("scope"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"learned": learned, "count": len(learned)})
}

// deleteLearnedRequest тело запроса удаления из истории решений.
// Либо точная тройка, либо каноническое имя для группового удаления
type deleteLearnedRequest struct {
	EntityType    mapping.EntityType `json:"entity_type" binding:"required"`
	Scope         string             `json:"scope"`
	RawTerm       string             `json:"raw_term"`
	SurveySource  string             `json:"survey_source"`
	CanonicalName string             `json:"canonical_name"`
}

// HandleDeleteLearned удаляет решения из истории
// DELETE /api/learned
func (h *Handler) HandleDeleteLearned(c *gin.Context) {
	var req deleteLearnedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewValidationError("invalid request body: "+err.Error(), err))
		return
	}

	switch {
	case req.CanonicalName != "":
		count, err := h.engine.RemoveLearnedByCanonical(c.Request.Context(), req.EntityType, req.Scope, req.CanonicalName)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_count": count})
	case req.RawTerm != "" && req.SurveySource != "":
		if err := h.engine.RemoveLearned(c.Request.Context(), req.EntityType, req.RawTerm, req.SurveySource, req.Scope); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	default:
		h.respondError(c, apperrors.NewValidationError("either canonical_name or raw_term with survey_source is required", nil))
	}
}

// HandleSuggestions возвращает кандидатов канонических имен
// GET /api/suggestions?entity_type=&scope=&raw_term=&survey_source=&max=
func (h *Handler) HandleSuggestions(c *gin.Context) {
	et, ok := entityTypeParam(c)
	if !ok {
		return
	}
	rawTerm := c.Query("raw_term")
	if rawTerm == "" {
		h.respondError(c, apperrors.NewValidationError("raw_term is required", nil))
		return
	}

	max := 0
	if maxStr := c.Query("max"); maxStr != "" {
		parsed, err := strconv.Atoi(maxStr)
		if err != nil || parsed < 1 {
			h.respondError(c, apperrors.NewValidationError("max must be a positive integer", err))
			return
		}
		max = parsed
	}

	suggestions, err := h.engine.Suggest(c.Request.Context(), et, c.Query("scope"), rawTerm, c.Query("survey_source"), max)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "count": len(suggestions)})
}

// batchRequest тело запроса пакетного разрешения
type batchRequest struct {
	EntityType mapping.EntityType `json:"entity_type" binding:"required"`
	Scope      string             `json:"scope"`
	Threshold  float64            `json:"threshold"`
	MaxItems   int                `json:"max_items"`
}

// HandleBatchResolution автоматически привязывает уверенные совпадения
// POST /api/batch-resolution
func (h *Handler) HandleBatchResolution(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewValidationError("invalid request body: "+err.Error(), err))
		return
	}
	if req.Threshold == 0 {
		req.Threshold = h.defaultThreshold
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		h.respondError(c, apperrors.NewValidationError("threshold must be in (0, 1]", nil))
		return
	}

	result, err := h.engine.RunBatchResolution(c.Request.Context(), mapping.BatchConfig{
		EntityType: req.EntityType,
		Scope:      req.Scope,
		Threshold:  req.Threshold,
		MaxItems:   req.MaxItems,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleCachePrefetch прогревает кэш scope
// POST /api/cache/prefetch
func (h *Handler) HandleCachePrefetch(c *gin.Context) {
	var req struct {
		EntityType mapping.EntityType `json:"entity_type" binding:"required"`
		Scope      string             `json:"scope"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.NewValidationError("invalid request body: "+err.Error(), err))
		return
	}

	if err := h.engine.WarmScope(c.Request.Context(), req.EntityType, req.Scope); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warmed": true})
}

// HandleCacheStats возвращает статистику кэша
// GET /api/cache/stats
func (h *Handler) HandleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Cache().GetStats())
}

// HandleCacheClear инвалидирует весь кэш
// POST /api/cache/clear
func (h *Handler) HandleCacheClear(c *gin.Context) {
	h.engine.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// HandleSimilarityCompare сравнивает две строки гибридным скорером
// GET /api/similarity/compare?s1=&s2=
func (h *Handler) HandleSimilarityCompare(c *gin.Context) {
	s1 := c.Query("s1")
	s2 := c.Query("s2")
	if s1 == "" || s2 == "" {
		h.respondError(c, apperrors.NewValidationError("s1 and s2 are required", nil))
		return
	}

	scorer := h.engine.Engine().Scorer()
	n1, n2 := algorithms.NormalizeTerm(s1), algorithms.NormalizeTerm(s2)
	c.JSON(http.StatusOK, gin.H{
		"s1":    s1,
		"s2":    s2,
		"score": scorer.Score(s1, s2),
		"breakdown": gin.H{
			"jaro_winkler": algorithms.JaroWinklerSimilarity(n1, n2),
			"lcs":          algorithms.LCSSimilarity(n1, n2),
			"ngram":        algorithms.NgramSimilarity(n1, n2, 2),
			"token":        algorithms.TokenJaccardSimilarity(n1, n2),
		},
		"weights": scorer.GetWeights(),
	})
}

// HandleHealth проверяет доступность сервиса и хранилища
// GET /api/health
func (h *Handler) HandleHealth(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		h.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store unavailable"})
		return
	}

	stats := h.engine.Cache().GetStats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache": gin.H{
			"entries":  stats.TotalEntries,
			"hit_rate": stats.HitRate,
		},
	})
}
