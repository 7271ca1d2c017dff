package mapping

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"surveyserver/internal/domain/mapping"
	"surveyserver/internal/infrastructure/cache"
)

// CachedEngine кэширующая обертка над Engine. Все операции чтения идут
// через SWR-кэш, мутации делегируются движку и инвалидируют scope
// только после успешной записи в хранилище
type CachedEngine struct {
	engine    *Engine
	cache     *cache.Cache
	suggester *Suggester
	logger    *slog.Logger
}

// NewCachedEngine создает обертку и регистрирует декодеры снапшота
func NewCachedEngine(engine *Engine, c *cache.Cache, logger *slog.Logger) *CachedEngine {
	c.RegisterDecoder(cache.KindMappings, func(data []byte) (interface{}, error) {
		var v []mapping.CanonicalMapping
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	c.RegisterDecoder(cache.KindUnmapped, func(data []byte) (interface{}, error) {
		var v []mapping.RawTerm
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
	c.RegisterDecoder(cache.KindLearned, func(data []byte) (interface{}, error) {
		var v []mapping.LearnedMapping
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	})

	return &CachedEngine{
		engine:    engine,
		cache:     c,
		suggester: NewSuggester(engine.Scorer()),
		logger:    logger,
	}
}

// Engine возвращает нижележащий движок (для операций мимо кэша)
func (ce *CachedEngine) Engine() *Engine {
	return ce.engine
}

// Cache возвращает нижележащий кэш (для статистики и снапшотов)
func (ce *CachedEngine) Cache() *cache.Cache {
	return ce.cache
}

// ListMappings возвращает маппинги через кэш
func (ce *CachedEngine) ListMappings(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.CanonicalMapping, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	v, err := ce.cache.Read(ctx, cache.MappingsKey(string(entityType), scope), func(ctx context.Context) (interface{}, error) {
		return ce.engine.ListMappings(ctx, entityType, scope)
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.([]mapping.CanonicalMapping)
	return result, nil
}

// ListUnmapped возвращает неразрешенные термины через кэш
func (ce *CachedEngine) ListUnmapped(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.RawTerm, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	v, err := ce.cache.Read(ctx, cache.UnmappedKey(string(entityType), scope), func(ctx context.Context) (interface{}, error) {
		return ce.engine.ListUnmapped(ctx, entityType, scope)
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.([]mapping.RawTerm)
	return result, nil
}

// ListLearned возвращает историю решений через кэш
func (ce *CachedEngine) ListLearned(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.LearnedMapping, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	v, err := ce.cache.Read(ctx, cache.LearnedKey(string(entityType), scope), func(ctx context.Context) (interface{}, error) {
		return ce.engine.ListLearned(ctx, entityType, scope)
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.([]mapping.LearnedMapping)
	return result, nil
}

// Suggest подбирает кандидатов по кэшированным маппингам и истории
func (ce *CachedEngine) Suggest(ctx context.Context, entityType mapping.EntityType, scope, rawTerm, surveySource string, max int) ([]mapping.Suggestion, error) {
	mappings, err := ce.ListMappings(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	learned, err := ce.ListLearned(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	return ce.suggester.Suggest(rawTerm, surveySource, mappings, learned, max), nil
}

// invalidateScope сбрасывает все ключи scope после успешной мутации
func (ce *CachedEngine) invalidateScope(entityType mapping.EntityType, scope string) {
	ce.cache.Invalidate(cache.ScopeKeys(string(entityType), scope)...)
}

// CreateMapping создает маппинг и инвалидирует кэш scope
func (ce *CachedEngine) CreateMapping(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string, entries []mapping.SourceEntry) (*mapping.CanonicalMapping, error) {
	m, err := ce.engine.CreateMapping(ctx, entityType, scope, canonicalName, entries)
	if err != nil {
		return nil, err
	}
	ce.invalidateScope(entityType, scope)
	return m, nil
}

// DeleteMapping удаляет маппинг и инвалидирует кэш его scope
func (ce *CachedEngine) DeleteMapping(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	deleted, err := ce.engine.DeleteMapping(ctx, id)
	if err != nil {
		return nil, err
	}
	ce.invalidateScope(deleted.EntityType, deleted.Scope)
	return deleted, nil
}

// DeleteAllMappings удаляет маппинги типа сущности и инвалидирует кэш
func (ce *CachedEngine) DeleteAllMappings(ctx context.Context, entityType mapping.EntityType, scope string) (int, error) {
	count, err := ce.engine.DeleteAllMappings(ctx, entityType, scope)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		ce.invalidateScope(entityType, scope)
	}
	return count, nil
}

// RemoveLearned удаляет решение и инвалидирует кэш scope.
// Любая мутация сбрасывает все три списка scope — единый перечислимый
// набор ключей, без выборочной инвалидации по виду мутации
func (ce *CachedEngine) RemoveLearned(ctx context.Context, entityType mapping.EntityType, rawTerm, surveySource, scope string) error {
	if err := ce.engine.RemoveLearned(ctx, entityType, rawTerm, surveySource, scope); err != nil {
		return err
	}
	ce.invalidateScope(entityType, scope)
	return nil
}

// RemoveLearnedByCanonical удаляет группу решений и инвалидирует кэш scope
func (ce *CachedEngine) RemoveLearnedByCanonical(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (int, error) {
	count, err := ce.engine.RemoveLearnedByCanonical(ctx, entityType, scope, canonicalName)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		ce.invalidateScope(entityType, scope)
	}
	return count, nil
}

// RunBatchResolution выполняет пакетное разрешение мимо кэша чтения.
// Scope инвалидируется после любого непустого пакета, даже без единой
// привязки: чтение после пакета обязано отражать состояние после него
func (ce *CachedEngine) RunBatchResolution(ctx context.Context, cfg mapping.BatchConfig) (*mapping.BatchResult, error) {
	result, err := ce.engine.RunBatchResolution(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if result.Total > 0 {
		ce.invalidateScope(cfg.EntityType, cfg.Scope)
	}
	return result, nil
}

// WarmScope прогревает все ключи scope параллельно.
// Ошибки отдельных ключей не прерывают прогрев остальных
func (ce *CachedEngine) WarmScope(ctx context.Context, entityType mapping.EntityType, scope string) error {
	if !entityType.Valid() {
		return mapping.ErrInvalidEntityType
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := ce.ListMappings(ctx, entityType, scope)
		return err
	})
	g.Go(func() error {
		_, err := ce.ListUnmapped(ctx, entityType, scope)
		return err
	})
	g.Go(func() error {
		_, err := ce.ListLearned(ctx, entityType, scope)
		return err
	})
	return g.Wait()
}

// SaveSnapshot сохраняет текущее содержимое кэша
func (ce *CachedEngine) SaveSnapshot(ctx context.Context, store cache.SnapshotStore) error {
	entries := ce.cache.Export()
	if err := store.Save(ctx, entries); err != nil {
		return err
	}
	ce.logger.Info("cache snapshot saved", "entries", len(entries))
	return nil
}

// RestoreSnapshot восстанавливает кэш из снапшота с ограничением по времени.
// Восстановленные записи помечаются устаревшими и ревалидируются при чтении
func (ce *CachedEngine) RestoreSnapshot(ctx context.Context, store cache.SnapshotStore, timeout time.Duration) int {
	return ce.cache.RestoreFromSnapshot(ctx, store, timeout)
}
