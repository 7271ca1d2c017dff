package persistence

import (
	"context"
	"strings"
	"time"

	"surveyserver/internal/domain/mapping"
)

// sqliteLearnedRepository реализация LearnedRepository поверх SQLite
type sqliteLearnedRepository struct {
	store *SQLiteStore
}

// NewSQLiteLearnedRepository создает репозиторий истории решений
func NewSQLiteLearnedRepository(store *SQLiteStore) mapping.LearnedRepository {
	return &sqliteLearnedRepository{store: store}
}

// Upsert идемпотентно записывает решение по ключу (тип, термин, источник, scope)
func (r *sqliteLearnedRepository) Upsert(ctx context.Context, lm *mapping.LearnedMapping) error {
	lm.UpdatedAt = time.Now().UTC()
	_, err := r.store.conn.ExecContext(ctx,
		`INSERT INTO learned_mappings (entity_type, raw_term, survey_source, scope, canonical_name, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_type, raw_term, survey_source, scope)
		 DO UPDATE SET canonical_name = excluded.canonical_name, updated_at = excluded.updated_at`,
		string(lm.EntityType), lm.RawTerm, lm.SurveySource, lm.Scope, lm.CanonicalName, lm.UpdatedAt)
	if err != nil {
		return mapping.NewStoreError("upsert learned", err)
	}
	return nil
}

// List возвращает все решения для типа сущности и scope
func (r *sqliteLearnedRepository) List(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.LearnedMapping, error) {
	rows, err := r.store.conn.QueryContext(ctx,
		`SELECT entity_type, raw_term, survey_source, scope, canonical_name, updated_at
		 FROM learned_mappings
		 WHERE entity_type = ? AND scope = ?
		 ORDER BY raw_term, survey_source`,
		string(entityType), scope)
	if err != nil {
		return nil, mapping.NewStoreError("list learned", err)
	}
	defer rows.Close()

	var result []mapping.LearnedMapping
	for rows.Next() {
		var lm mapping.LearnedMapping
		var entityTypeStr string
		if err := rows.Scan(&entityTypeStr, &lm.RawTerm, &lm.SurveySource, &lm.Scope, &lm.CanonicalName, &lm.UpdatedAt); err != nil {
			return nil, mapping.NewStoreError("scan learned", err)
		}
		lm.EntityType = mapping.EntityType(entityTypeStr)
		result = append(result, lm)
	}
	if err := rows.Err(); err != nil {
		return nil, mapping.NewStoreError("iterate learned", err)
	}
	return result, nil
}

// Delete удаляет одно решение по точной тройке
func (r *sqliteLearnedRepository) Delete(ctx context.Context, entityType mapping.EntityType, rawTerm, surveySource, scope string) error {
	_, err := r.store.conn.ExecContext(ctx,
		`DELETE FROM learned_mappings
		 WHERE entity_type = ? AND lower(raw_term) = ? AND survey_source = ? AND scope = ?`,
		string(entityType), strings.ToLower(rawTerm), surveySource, scope)
	if err != nil {
		return mapping.NewStoreError("delete learned", err)
	}
	return nil
}

// DeleteByCanonicalName удаляет все решения, указывающие на каноническое имя,
// одной логической операцией
func (r *sqliteLearnedRepository) DeleteByCanonicalName(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (int, error) {
	res, err := r.store.conn.ExecContext(ctx,
		`DELETE FROM learned_mappings
		 WHERE entity_type = ? AND scope = ? AND lower(canonical_name) = ?`,
		string(entityType), scope, strings.ToLower(canonicalName))
	if err != nil {
		return 0, mapping.NewStoreError("delete learned group", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mapping.NewStoreError("delete learned group", err)
	}
	return int(affected), nil
}
