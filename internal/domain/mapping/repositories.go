package mapping

import (
	"context"
)

// MappingRepository долговременное хранилище канонических маппингов.
// Реализации: SQLite и Bolt (внешний контракт, бэкенд взаимозаменяем)
type MappingRepository interface {
	// Create создает канонический маппинг вместе с его source entries.
	// Возвращает ErrDuplicateSourceEntry если любая тройка
	// (сырой термин, источник, scope) уже занята другим маппингом
	Create(ctx context.Context, m *CanonicalMapping) error

	// GetByID возвращает маппинг по идентификатору
	GetByID(ctx context.Context, id string) (*CanonicalMapping, error)

	// List возвращает маппинги типа сущности, опционально ограниченные scope.
	// Пустой scope означает «без партиции»
	List(ctx context.Context, entityType EntityType, scope string) ([]CanonicalMapping, error)

	// FindByCanonicalName ищет маппинг по каноническому имени в пределах типа и scope.
	// Возвращает ErrMappingNotFound если маппинга нет
	FindByCanonicalName(ctx context.Context, entityType EntityType, scope, canonicalName string) (*CanonicalMapping, error)

	// AddSourceEntries добавляет source entries к существующему маппингу
	AddSourceEntries(ctx context.Context, id string, entries []SourceEntry) error

	// RemoveSourceEntry отвязывает один source entry от маппинга
	RemoveSourceEntry(ctx context.Context, id, entryID string) error

	// Delete удаляет маппинг и возвращает удаленное состояние
	// (source entries нужны вызывающему для инвалидации)
	Delete(ctx context.Context, id string) (*CanonicalMapping, error)

	// DeleteAll удаляет все маппинги типа сущности в scope
	DeleteAll(ctx context.Context, entityType EntityType, scope string) (int, error)
}

// LearnedRepository долговременное хранилище истории решений
type LearnedRepository interface {
	// Upsert идемпотентно записывает решение по ключу (тип, термин, источник, scope)
	Upsert(ctx context.Context, lm *LearnedMapping) error

	// List возвращает все решения для типа сущности и scope
	List(ctx context.Context, entityType EntityType, scope string) ([]LearnedMapping, error)

	// Delete удаляет одно решение по точной тройке
	Delete(ctx context.Context, entityType EntityType, rawTerm, surveySource, scope string) error

	// DeleteByCanonicalName удаляет все решения, указывающие на каноническое имя
	// (групповое удаление одной логической операцией)
	DeleteByCanonicalName(ctx context.Context, entityType EntityType, scope, canonicalName string) (int, error)
}

// RowSource источник загруженных строк. Парсинг файлов и выгрузок —
// ответственность слоя инжеста, движок видит только готовые строки
type RowSource interface {
	// ListSurveys возвращает все зарегистрированные источники
	ListSurveys(ctx context.Context) ([]Survey, error)

	// GetRows возвращает строки одной выгрузки
	GetRows(ctx context.Context, surveyID string) ([]Row, error)
}
