package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"surveyserver/internal/domain/mapping"
)

// sqliteMappingRepository реализация MappingRepository поверх SQLite
type sqliteMappingRepository struct {
	store *SQLiteStore
}

// NewSQLiteMappingRepository создает репозиторий канонических маппингов
func NewSQLiteMappingRepository(store *SQLiteStore) mapping.MappingRepository {
	return &sqliteMappingRepository{store: store}
}

// Create создает канонический маппинг вместе с source entries в одной транзакции
func (r *sqliteMappingRepository) Create(ctx context.Context, m *mapping.CanonicalMapping) error {
	tx, err := r.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapping.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	// Явная проверка коллизий: тройка может принадлежать максимум одному маппингу
	for _, entry := range m.SourceEntries {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT mapping_id FROM source_entries
			 WHERE entity_type = ? AND scope = ? AND lower(raw_term) = lower(?) AND survey_source = ?`,
			string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource,
		).Scan(&existingID)
		if err == nil {
			return &mapping.DuplicateSourceEntryError{
				RawTerm:      entry.RawTerm,
				SurveySource: entry.SurveySource,
				Scope:        m.Scope,
				ExistingID:   existingID,
			}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return mapping.NewStoreError("check duplicate", err)
		}
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO canonical_mappings (id, entity_type, canonical_name, scope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.EntityType), m.CanonicalName, m.Scope, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return mapping.NewStoreError("insert mapping", err)
	}

	for _, entry := range m.SourceEntries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_entries (id, mapping_id, entity_type, raw_term, survey_source, scope)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.ID, m.ID, string(m.EntityType), entry.RawTerm, entry.SurveySource, m.Scope,
		); err != nil {
			return mapping.NewStoreError("insert source entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapping.NewStoreError("commit", err)
	}
	return nil
}

// GetByID возвращает маппинг по идентификатору
func (r *sqliteMappingRepository) GetByID(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	row := r.store.conn.QueryRowContext(ctx,
		`SELECT id, entity_type, canonical_name, scope, created_at, updated_at
		 FROM canonical_mappings WHERE id = ?`, id)

	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mapping.ErrMappingNotFound
		}
		return nil, mapping.NewStoreError("get mapping", err)
	}

	if err := r.loadEntries(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List возвращает маппинги типа сущности, опционально ограниченные scope
func (r *sqliteMappingRepository) List(ctx context.Context, entityType mapping.EntityType, scope string) ([]mapping.CanonicalMapping, error) {
	rows, err := r.store.conn.QueryContext(ctx,
		`SELECT id, entity_type, canonical_name, scope, created_at, updated_at
		 FROM canonical_mappings
		 WHERE entity_type = ? AND scope = ?
		 ORDER BY canonical_name`,
		string(entityType), scope)
	if err != nil {
		return nil, mapping.NewStoreError("list mappings", err)
	}
	defer rows.Close()

	var result []mapping.CanonicalMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, mapping.NewStoreError("scan mapping", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapping.NewStoreError("iterate mappings", err)
	}

	for i := range result {
		if err := r.loadEntries(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// FindByCanonicalName ищет маппинг по каноническому имени (без учета регистра)
func (r *sqliteMappingRepository) FindByCanonicalName(ctx context.Context, entityType mapping.EntityType, scope, canonicalName string) (*mapping.CanonicalMapping, error) {
	row := r.store.conn.QueryRowContext(ctx,
		`SELECT id, entity_type, canonical_name, scope, created_at, updated_at
		 FROM canonical_mappings
		 WHERE entity_type = ? AND scope = ? AND lower(canonical_name) = ?`,
		string(entityType), scope, strings.ToLower(canonicalName))

	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mapping.ErrMappingNotFound
		}
		return nil, mapping.NewStoreError("find mapping", err)
	}

	if err := r.loadEntries(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddSourceEntries добавляет source entries к существующему маппингу
func (r *sqliteMappingRepository) AddSourceEntries(ctx context.Context, id string, entries []mapping.SourceEntry) error {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tx, err := r.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapping.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT mapping_id FROM source_entries
			 WHERE entity_type = ? AND scope = ? AND lower(raw_term) = lower(?) AND survey_source = ?`,
			string(m.EntityType), m.Scope, entry.RawTerm, entry.SurveySource,
		).Scan(&existingID)
		if err == nil {
			return &mapping.DuplicateSourceEntryError{
				RawTerm:      entry.RawTerm,
				SurveySource: entry.SurveySource,
				Scope:        m.Scope,
				ExistingID:   existingID,
			}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return mapping.NewStoreError("check duplicate", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_entries (id, mapping_id, entity_type, raw_term, survey_source, scope)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			entry.ID, id, string(m.EntityType), entry.RawTerm, entry.SurveySource, m.Scope,
		); err != nil {
			return mapping.NewStoreError("insert source entry", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE canonical_mappings SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	); err != nil {
		return mapping.NewStoreError("touch mapping", err)
	}

	if err := tx.Commit(); err != nil {
		return mapping.NewStoreError("commit", err)
	}
	return nil
}

// RemoveSourceEntry отвязывает один source entry от маппинга
func (r *sqliteMappingRepository) RemoveSourceEntry(ctx context.Context, id, entryID string) error {
	res, err := r.store.conn.ExecContext(ctx,
		`DELETE FROM source_entries WHERE mapping_id = ? AND id = ?`, id, entryID)
	if err != nil {
		return mapping.NewStoreError("remove source entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapping.NewStoreError("remove source entry", err)
	}
	if affected == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

// Delete удаляет маппинг и возвращает удаленное состояние
func (r *sqliteMappingRepository) Delete(ctx context.Context, id string) (*mapping.CanonicalMapping, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Source entries удаляются каскадом
	if _, err := r.store.conn.ExecContext(ctx,
		`DELETE FROM canonical_mappings WHERE id = ?`, id); err != nil {
		return nil, mapping.NewStoreError("delete mapping", err)
	}
	return m, nil
}

// DeleteAll удаляет все маппинги типа сущности в scope
func (r *sqliteMappingRepository) DeleteAll(ctx context.Context, entityType mapping.EntityType, scope string) (int, error) {
	res, err := r.store.conn.ExecContext(ctx,
		`DELETE FROM canonical_mappings WHERE entity_type = ? AND scope = ?`,
		string(entityType), scope)
	if err != nil {
		return 0, mapping.NewStoreError("delete all mappings", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mapping.NewStoreError("delete all mappings", err)
	}
	return int(affected), nil
}

// loadEntries загружает source entries маппинга
func (r *sqliteMappingRepository) loadEntries(ctx context.Context, m *mapping.CanonicalMapping) error {
	rows, err := r.store.conn.QueryContext(ctx,
		`SELECT id, raw_term, survey_source, scope
		 FROM source_entries WHERE mapping_id = ?
		 ORDER BY raw_term, survey_source`, m.ID)
	if err != nil {
		return mapping.NewStoreError("load source entries", err)
	}
	defer rows.Close()

	m.SourceEntries = nil
	for rows.Next() {
		var entry mapping.SourceEntry
		if err := rows.Scan(&entry.ID, &entry.RawTerm, &entry.SurveySource, &entry.Scope); err != nil {
			return mapping.NewStoreError("scan source entry", err)
		}
		m.SourceEntries = append(m.SourceEntries, entry)
	}
	return rows.Err()
}

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMapping считывает строку canonical_mappings
func scanMapping(row rowScanner) (*mapping.CanonicalMapping, error) {
	var m mapping.CanonicalMapping
	var entityType string
	if err := row.Scan(&m.ID, &entityType, &m.CanonicalName, &m.Scope, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.EntityType = mapping.EntityType(entityType)
	return &m, nil
}
