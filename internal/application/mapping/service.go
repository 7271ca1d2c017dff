package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
)

// Engine основной сервис разрешения терминов. Все операции читают и пишут
// хранилище напрямую; кэширующая обертка живет в CachedEngine
type Engine struct {
	mappings  mapping.MappingRepository
	learned   mapping.LearnedRepository
	inventory *Inventory
	suggester *Suggester
	scorer    *algorithms.Scorer
	logger    *slog.Logger
}

// NewEngine создает движок разрешения
func NewEngine(
	mappings mapping.MappingRepository,
	learned mapping.LearnedRepository,
	rows mapping.RowSource,
	scorer *algorithms.Scorer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		mappings:  mappings,
		learned:   learned,
		inventory: NewInventory(rows),
		suggester: NewSuggester(scorer),
		scorer:    scorer,
		logger:    logger,
	}
}

// Scorer возвращает скорер движка (для операции сравнения строк)
func (e *Engine) Scorer() *algorithms.Scorer {
	return e.scorer
}

// ListMappings возвращает канонические маппинги типа сущности в scope
func (e *Engine) ListMappings(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.CanonicalMapping, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	return e.mappings.List(ctx, entityType, scope)
}

// ListLearned возвращает историю решений типа сущности в scope
func (e *Engine) ListLearned(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.LearnedMapping, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	return e.learned.List(ctx, entityType, scope)
}

// ListUnmapped возвращает сырые термины без привязки к каноническому маппингу
func (e *Engine) ListUnmapped(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.RawTerm, error) {
	inventory, err := e.inventory.Collect(ctx, entityType)
	if err != nil {
		return nil, err
	}
	mappings, err := e.mappings.List(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	return ResolveUnmapped(inventory, mappings), nil
}

// Suggest возвращает кандидатов канонических имен для сырого термина
func (e *Engine) Suggest(ctx context.Context, entityType mapping.EntityType, scope, rawTerm, surveySource string, max int) ([]mapping.Suggestion, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	mappings, err := e.mappings.List(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	learned, err := e.learned.List(ctx, entityType, scope)
	if err != nil {
		return nil, err
	}
	return e.suggester.Suggest(rawTerm, surveySource, mappings, learned, max), nil
}

// CreateMapping привязывает сырые термины к каноническому имени.
// Если маппинг с таким именем уже существует, термины добавляются к нему.
// Каждая привязка дублируется в историю решений; при сбое записи истории
// привязка откатывается, чтобы пара «маппинг + история» оставалась согласованной
func (e *Engine) CreateMapping(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string, entries []mapping.SourceEntry) (*mapping.CanonicalMapping, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	canonicalName = strings.TrimSpace(canonicalName)
	if canonicalName == "" {
		return nil, fmt.Errorf("canonical name is empty")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no source entries")
	}

	for i := range entries {
		entries[i].ID = uuid.New().String()
		entries[i].Scope = scope
		entries[i].RawTerm = strings.TrimSpace(entries[i].RawTerm)
		if entries[i].RawTerm == "" {
			return nil, fmt.Errorf("source entry %d: raw term is empty", i)
		}
	}

	existing, err := e.mappings.FindByCanonicalName(ctx, entityType, scope, canonicalName)
	switch {
	case err == nil:
		return e.extendMapping(ctx, existing, entries)
	case errors.Is(err, mapping.ErrMappingNotFound):
		return e.createMapping(ctx, entityType, scope, canonicalName, entries)
	default:
		return nil, err
	}
}

// createMapping создает новый маппинг и записи истории с компенсацией
func (e *Engine) createMapping(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string, entries []mapping.SourceEntry) (*mapping.CanonicalMapping, error) {
	m := &mapping.CanonicalMapping{
		ID:            uuid.New().String(),
		EntityType:    entityType,
		CanonicalName: canonicalName,
		Scope:         scope,
		SourceEntries: entries,
	}
	if err := e.mappings.Create(ctx, m); err != nil {
		return nil, err
	}

	if err := e.writeLearned(ctx, m); err != nil {
		// Компенсация: история и маппинг пишутся парой или никак
		if _, delErr := e.mappings.Delete(ctx, m.ID); delErr != nil {
			e.logger.Error("compensation failed, mapping left without learned records",
				"mapping_id", m.ID, "error", delErr)
		}
		return nil, err
	}

	e.logger.Info("mapping created",
		"entity_type", entityType, "canonical_name", canonicalName,
		"scope", scope, "entries", len(entries))
	return m, nil
}

// extendMapping добавляет термины к существующему маппингу с компенсацией
func (e *Engine) extendMapping(ctx context.Context, m *mapping.CanonicalMapping, entries []mapping.SourceEntry) (*mapping.CanonicalMapping, error) {
	if err := e.mappings.AddSourceEntries(ctx, m.ID, entries); err != nil {
		return nil, err
	}

	added := &mapping.CanonicalMapping{
		ID:            m.ID,
		EntityType:    m.EntityType,
		CanonicalName: m.CanonicalName,
		Scope:         m.Scope,
		SourceEntries: entries,
	}
	if err := e.writeLearned(ctx, added); err != nil {
		for _, entry := range entries {
			if remErr := e.mappings.RemoveSourceEntry(ctx, m.ID, entry.ID); remErr != nil {
				e.logger.Error("compensation failed, source entry left without learned record",
					"mapping_id", m.ID, "entry_id", entry.ID, "error", remErr)
			}
		}
		return nil, err
	}

	return e.mappings.GetByID(ctx, m.ID)
}

// writeLearned записывает решение по каждому source entry маппинга
func (e *Engine) writeLearned(ctx context.Context, m *mapping.CanonicalMapping) error {
	for _, entry := range m.SourceEntries {
		lm := &mapping.LearnedMapping{
			EntityType:    m.EntityType,
			RawTerm:       entry.RawTerm,
			SurveySource:  entry.SurveySource,
			Scope:         m.Scope,
			CanonicalName: m.CanonicalName,
		}
		if err := e.learned.Upsert(ctx, lm); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMapping удаляет маппинг. История решений не трогается:
// она переживает удаление и продолжает подсказывать прежний выбор
func (e *Engine) DeleteMapping(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	deleted, err := e.mappings.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	e.logger.Info("mapping deleted",
		"mapping_id", id, "canonical_name", deleted.CanonicalName,
		"entity_type", deleted.EntityType, "scope", deleted.Scope)
	return deleted, nil
}

// DeleteAllMappings удаляет все маппинги типа сущности в scope
func (e *Engine) DeleteAllMappings(ctx context.Context, entityType mapping.EntityType, scope string) (int, error) {
	if !entityType.Valid() {
		return 0, mapping.ErrInvalidEntityType
	}
	count, err := e.mappings.DeleteAll(ctx, entityType, scope)
	if err != nil {
		return 0, err
	}
	e.logger.Info("mappings cleared", "entity_type", entityType, "scope", scope, "count", count)
	return count, nil
}

// RemoveLearned удаляет одно решение из истории
func (e *Engine) RemoveLearned(ctx context.Context, entityType mapping.EntityType, rawTerm, surveySource, scope string) error {
	if !entityType.Valid() {
		return mapping.ErrInvalidEntityType
	}
	return e.learned.Delete(ctx, entityType, rawTerm, surveySource, scope)
}

// RemoveLearnedByCanonical удаляет все решения, указывающие на каноническое имя
func (e *Engine) RemoveLearnedByCanonical(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (int, error) {
	if !entityType.Valid() {
		return 0, mapping.ErrInvalidEntityType
	}
	return e.learned.DeleteByCanonicalName(ctx, entityType, scope, canonicalName)
}
