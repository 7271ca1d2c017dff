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

// boltLearnedRepository реализация LearnedRepository поверх bbolt
type boltLearnedRepository struct {
	store *BoltStore
}

// NewBoltLearnedRepository создает репозиторий истории решений
func NewBoltLearnedRepository(store *BoltStore) mapping.LearnedRepository {
	return &boltLearnedRepository{store: store}
}

// learnedKey ключ решения в bucket'е learned
func learnedKey(lm *mapping.LearnedMapping) []byte {
	return tripleKey(string(lm.EntityType), lm.Scope, lm.RawTerm, lm.SurveySource)
}

// Upsert идемпотентно записывает решение
func (r *boltLearnedRepository) Upsert(ctx context.Context, lm *mapping.LearnedMapping) error {
	lm.UpdatedAt = time.Now().UTC()
	data, err := encode(lm)
	if err != nil {
		return mapping.NewStoreError("encode learned", err)
	}
	return r.store.db.Update(func(tx *bolt.Tx) error {
		return putOrStoreErr(tx.Bucket(bucketLearned), learnedKey(lm), data, "put learned")
	})
}

// List возвращает все решения для типа сущности и scope
func (r *boltLearnedRepository) List(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.LearnedMapping, error) {
	var result []mapping.LearnedMapping
	prefix := tripleKeyPrefix(string(entityType), scope)
	err := r.store.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLearned).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var lm mapping.LearnedMapping
			if err := json.Unmarshal(v, &lm); err != nil {
				return mapping.NewStoreError("decode learned", err)
			}
			result = append(result, lm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RawTerm != result[j].RawTerm {
			return result[i].RawTerm < result[j].RawTerm
		}
		return result[i].SurveySource < result[j].SurveySource
	})
	return result, nil
}

// Delete удаляет одно решение по точной тройке
func (r *boltLearnedRepository) Delete(ctx context.Context, entityType mapping.EntityType, rawTerm, surveySource, scope string) error {
	key := tripleKey(string(entityType), scope, rawTerm, surveySource)
	return r.store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketLearned).Delete(key); err != nil {
			return mapping.NewStoreError("delete learned", err)
		}
		return nil
	})
}

// DeleteByCanonicalName удаляет все решения, указывающие на каноническое имя
func (r *boltLearnedRepository) DeleteByCanonicalName(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (int, error) {
	want := strings.ToLower(canonicalName)
	prefix := tripleKeyPrefix(string(entityType), scope)
	count := 0
	err := r.store.db.Update(func(tx *bolt.Tx) error {
		learned := tx.Bucket(bucketLearned)
		c := learned.Cursor()
		var doomed [][]byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var lm mapping.LearnedMapping
			if err := json.Unmarshal(v, &lm); err != nil {
				return mapping.NewStoreError("decode learned", err)
			}
			if strings.ToLower(lm.CanonicalName) == want {
				doomed = append(doomed, append([]byte(nil), k...))
			}
		}
		for _, k := range doomed {
			if err := learned.Delete(k); err != nil {
				return mapping.NewStoreError("delete learned", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
