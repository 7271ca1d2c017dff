package container

import (
	"fmt"
	"log/slog"

	mappinghandler "surveyserver/internal/api/handlers/mapping"
	"surveyserver/internal/api/routes"
	appmapping "surveyserver/internal/application/mapping"
	"surveyserver/internal/config"
	"surveyserver/internal/domain/mapping"
	"surveyserver/internal/infrastructure/cache"
	"surveyserver/internal/infrastructure/persistence"
	"surveyserver/normalization/algorithms"
)

// Container собирает зависимости приложения.
// Бэкенд хранилища выбирается конфигурацией, остальные слои
// не знают, поверх чего работают
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Engine        *appmapping.Engine
	CachedEngine  *appmapping.CachedEngine
	Cache         *cache.Cache
	SnapshotStore cache.SnapshotStore
	Router        *routes.Router

	closeStore func() error
}

// New собирает контейнер из конфигурации
func New(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	var (
		mappings mapping.MappingRepository
		learned  mapping.LearnedRepository
		rows     mapping.RowSource
		pinger   mappinghandler.Pinger
	)

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		store, err := persistence.NewSQLiteStore(cfg.DatabasePath, persistence.SQLiteConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		mappings = persistence.NewSQLiteMappingRepository(store)
		learned = persistence.NewSQLiteLearnedRepository(store)
		rows = persistence.NewSQLiteRowSource(store)
		pinger = store
		c.closeStore = store.Close

	case config.BackendBolt:
		store, err := persistence.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("init bolt store: %w", err)
		}
		mappings = persistence.NewBoltMappingRepository(store)
		learned = persistence.NewBoltLearnedRepository(store)
		rows = persistence.NewBoltRowSource(store)
		pinger = store
		c.closeStore = store.Close

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	scorer := algorithms.NewScorer(algorithms.DefaultSimilarityWeights(), 0)
	c.Engine = appmapping.NewEngine(mappings, learned, rows, scorer, logger)

	c.Cache = cache.New(cfg.CacheFreshTTL, cfg.CacheEvictTTL, logger)
	c.CachedEngine = appmapping.NewCachedEngine(c.Engine, c.Cache, logger)
	c.SnapshotStore = cache.NewFileSnapshotStore(cfg.SnapshotPath)

	handler := mappinghandler.NewHandler(c.CachedEngine, pinger, cfg.BatchConfidenceThreshold, logger)
	c.Router = routes.NewRouter(cfg, handler, logger)

	return c, nil
}

// Close освобождает ресурсы контейнера
func (c *Container) Close() error {
	if c.closeStore != nil {
		return c.closeStore()
	}
	return nil
}
