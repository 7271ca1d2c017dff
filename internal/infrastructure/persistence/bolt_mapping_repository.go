package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"surveyserver/internal/domain/mapping"
)

// boltMappingRepository реализация MappingRepository поверх bbolt
type boltMappingRepository struct {
	store *BoltStore
}

// NewBoltMappingRepository создает репозиторий канонических маппингов
func NewBoltMappingRepository(store *BoltStore) mapping.MappingRepository {
	return &boltMappingRepository{store: store}
}

// Create создает канонический маппинг вместе с source entries в одной транзакции
func (r *boltMappingRepository) Create(ctx context.Context, m *mapping.CanonicalMapping) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	err := r.store.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(bucketSourceIndex)

		// Тройка может принадлежать максимум одному маппингу
		for _, entry := range m.SourceEntries {
			key := tripleKey(string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource)
			if existing := index.Get(key); existing != nil {
				return &mapping.DuplicateSourceEntryError{
					RawTerm:      entry.RawTerm,
					SurveySource: entry.SurveySource,
					Scope:        m.Scope,
					ExistingID:   string(existing),
				}
			}
		}

		data, err := encode(m)
		if err != nil {
			return mapping.NewStoreError("encode mapping", err)
		}
		if err := tx.Bucket(bucketMappings).Put([]byte(m.ID), data); err != nil {
			return mapping.NewStoreError("put mapping", err)
		}

		for _, entry := range m.SourceEntries {
			key := tripleKey(string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource)
			if err := index.Put(key, []byte(m.ID)); err != nil {
				return mapping.NewStoreError("index source entry", err)
			}
		}
		return nil
	})
	return err
}

// GetByID возвращает маппинг по идентификатору
func (r *boltMappingRepository) GetByID(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	var m *mapping.CanonicalMapping
	err := r.store.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMappings).Get([]byte(id))
		if data == nil {
			return mapping.ErrMappingNotFound
		}
		m = &mapping.CanonicalMapping{}
		if err := decodeMapping(data, m); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List возвращает маппинги типа сущности в scope, упорядоченные по имени
func (r *boltMappingRepository) List(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.CanonicalMapping, error) {
	var result []mapping.CanonicalMapping
	err := r.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMappings).ForEach(func(_, data []byte) error {
			var m mapping.CanonicalMapping
			if err := decodeMapping(data, &m); err != nil {
				return err
			}
			if m.EntityType == entityType && m.Scope == scope {
				result = append(result, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CanonicalName < result[j].CanonicalName
	})
	return result, nil
}

// FindByCanonicalName ищет маппинг по каноническому имени (без учета регистра)
func (r *boltMappingRepository) FindByCanonicalName(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (*mapping.CanonicalMapping, error) {
	want := strings.ToLower(canonicalName)
	var found *mapping.CanonicalMapping
	err := r.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMappings).ForEach(func(_, data []byte) error {
			if found != nil {
				return nil
			}
			var m mapping.CanonicalMapping
			if err := decodeMapping(data, &m); err != nil {
				return err
			}
			if m.EntityType == entityType && m.Scope == scope && strings.ToLower(m.CanonicalName) == want {
				found = &m
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, mapping.ErrMappingNotFound
	}
	return found, nil
}

// AddSourceEntries добавляет source entries к существующему маппингу
func (r *boltMappingRepository) AddSourceEntries(ctx context.Context, id string, entries []mapping.SourceEntry) error {
	return r.store.db.Update(func(tx *bolt.Tx) error {
		mappings := tx.Bucket(bucketMappings)
		data := mappings.Get([]byte(id))
		if data == nil {
			return mapping.ErrMappingNotFound
		}
		var m mapping.CanonicalMapping
		if err := decodeMapping(data, &m); err != nil {
			return err
		}

		index := tx.Bucket(bucketSourceIndex)
		for _, entry := range entries {
			key := tripleKey(string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource)
			if existing := index.Get(key); existing != nil {
				return &mapping.DuplicateSourceEntryError{
					RawTerm:      entry.RawTerm,
					SurveySource: entry.SurveySource,
					Scope:        m.Scope,
					ExistingID:   string(existing),
				}
			}
		}

		for _, entry := range entries {
			entry.Scope = m.Scope
			m.SourceEntries = append(m.SourceEntries, entry)
			key := tripleKey(string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource)
			if err := index.Put(key, []byte(m.ID)); err != nil {
				return mapping.NewStoreError("index source entry", err)
			}
		}
		m.UpdatedAt = time.Now().UTC()

		updated, err := encode(&m)
		if err != nil {
			return mapping.NewStoreError("encode mapping", err)
		}
		return putOrStoreErr(mappings, []byte(m.ID), updated, "put mapping")
	})
}

// RemoveSourceEntry отвязывает один source entry от маппинга
func (r *boltMappingRepository) RemoveSourceEntry(ctx context.Context, id, entryID string) error {
	return r.store.db.Update(func(tx *bolt.Tx) error {
		mappings := tx.Bucket(bucketMappings)
		data := mappings.Get([]byte(id))
		if data == nil {
			return mapping.ErrMappingNotFound
		}
		var m mapping.CanonicalMapping
		if err := decodeMapping(data, &m); err != nil {
			return err
		}

		idx := -1
		for i, entry := range m.SourceEntries {
			if entry.ID == entryID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return mapping.ErrMappingNotFound
		}

		removed := m.SourceEntries[idx]
		m.SourceEntries = append(m.SourceEntries[:idx], m.SourceEntries[idx+1:]...)
		m.UpdatedAt = time.Now().UTC()

		key := tripleKey(string(m.EntityType), m.Scope, removed.RawTerm, removed.SurveySource)
		if err := tx.Bucket(bucketSourceIndex).Delete(key); err != nil {
			return mapping.NewStoreError("unindex source entry", err)
		}

		updated, err := encode(&m)
		if err != nil {
			return mapping.NewStoreError("encode mapping", err)
		}
		return putOrStoreErr(mappings, []byte(m.ID), updated, "put mapping")
	})
}

// Delete удаляет маппинг и возвращает удаленное состояние
func (r *boltMappingRepository) Delete(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	var deleted *mapping.CanonicalMapping
	err := r.store.db.Update(func(tx *bolt.Tx) error {
		mappings := tx.Bucket(bucketMappings)
		data := mappings.Get([]byte(id))
		if data == nil {
			return mapping.ErrMappingNotFound
		}
		var m mapping.CanonicalMapping
		if err := decodeMapping(data, &m); err != nil {
			return err
		}

		index := tx.Bucket(bucketSourceIndex)
		for _, entry := range m.SourceEntries {
			key := tripleKey(string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource)
			if err := index.Delete(key); err != nil {
				return mapping.NewStoreError("unindex source entry", err)
			}
		}
		if err := mappings.Delete([]byte(id)); err != nil {
			return mapping.NewStoreError("delete mapping", err)
		}
		deleted = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// DeleteAll удаляет все маппинги типа сущности в scope
func (r *boltMappingRepository) DeleteAll(ctx context.Context, entityType mapping.EntityType, scope string) (int, error) {
	count := 0
	err := r.store.db.Update(func(tx *bolt.Tx) error {
		mappings := tx.Bucket(bucketMappings)

		var ids [][]byte
		err := mappings.ForEach(func(k, data []byte) error {
			var m mapping.CanonicalMapping
			if err := decodeMapping(data, &m); err != nil {
				return err
			}
			if m.EntityType == entityType && m.Scope == scope {
				ids = append(ids, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := mappings.Delete(id); err != nil {
				return mapping.NewStoreError("delete mapping", err)
			}
			count++
		}

		// Индекс троек чистится префиксным курсором
		index := tx.Bucket(bucketSourceIndex)
		prefix := tripleKeyPrefix(string(entityType), scope)
		c := index.Cursor()
		var stale [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := index.Delete(k); err != nil {
				return mapping.NewStoreError("unindex source entry", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// decodeMapping десериализует маппинг из JSON
func decodeMapping(data []byte, m *mapping.CanonicalMapping) error {
	if err := json.Unmarshal(data, m); err != nil {
		return mapping.NewStoreError("decode mapping", err)
	}
	return nil
}

// putOrStoreErr оборачивает ошибку Put в StoreError
func putOrStoreErr(b *bolt.Bucket, key, val []byte, op string) error {
	if err := b.Put(key, val); err != nil {
		return mapping.NewStoreError(op, err)
	}
	return nil
}
