package persistence

import (
	"context"
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"

	"surveyserver/internal/domain/mapping"
)

// boltRowSource реализация RowSource поверх bbolt
type boltRowSource struct {
	store *BoltStore
}

// NewBoltRowSource создает источник строк
func NewBoltRowSource(store *BoltStore) mapping.RowSource {
	return &boltRowSource{store: store}
}

// ListSurveys возвращает все зарегистрированные выгрузки
func (r *boltRowSource) ListSurveys(ctx context.Context) ([]mapping.Survey, error) {
	var result []mapping.Survey
	err := r.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSurveys).ForEach(func(_, v []byte) error {
			var s mapping.Survey
			if err := json.Unmarshal(v, &s); err != nil {
				return mapping.NewStoreError("decode survey", err)
			}
			result = append(result, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetRows возвращает строки одной выгрузки
func (r *boltRowSource) GetRows(ctx context.Context, surveyID string) ([]mapping.Row, error) {
	var result []mapping.Row
	err := r.store.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRows).Get([]byte(surveyID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return mapping.NewStoreError("decode rows", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SeedSurvey регистрирует выгрузку и ее строки (используется тестами и скриптами загрузки)
func (r *boltRowSource) SeedSurvey(ctx context.Context, survey mapping.Survey, rows []mapping.Row) error {
	surveyData, err := encode(survey)
	if err != nil {
		return mapping.NewStoreError("encode survey", err)
	}
	rowData, err := encode(rows)
	if err != nil {
		return mapping.NewStoreError("encode rows", err)
	}
	return r.store.db.Update(func(tx *bolt.Tx) error {
		if err := putOrStoreErr(tx.Bucket(bucketSurveys), []byte(survey.ID), surveyData, "put survey"); err != nil {
			return err
		}
		return putOrStoreErr(tx.Bucket(bucketRows), []byte(survey.ID), rowData, "put rows")
	})
}
