package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"surveyserver/internal/domain/mapping"
)

// sqliteRowSource реализация RowSource поверх таблиц инжеста.
// Слой загрузки файлов пишет в surveys/survey_rows, движок только читает
type sqliteRowSource struct {
	store *SQLiteStore
}

// NewSQLiteRowSource создает источник строк
func NewSQLiteRowSource(store *SQLiteStore) mapping.RowSource {
	return &sqliteRowSource{store: store}
}

// ListSurveys возвращает все зарегистрированные выгрузки
func (r *sqliteRowSource) ListSurveys(ctx context.Context) ([]mapping.Survey, error) {
	rows, err := r.store.conn.QueryContext(ctx,
		`SELECT id, source, year FROM surveys ORDER BY id`)
	if err != nil {
		return nil, mapping.NewStoreError("list surveys", err)
	}
	defer rows.Close()

	var result []mapping.Survey
	for rows.Next() {
		var s mapping.Survey
		if err := rows.Scan(&s.ID, &s.Source, &s.Year); err != nil {
			return nil, mapping.NewStoreError("scan survey", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetRows возвращает строки одной выгрузки
func (r *sqliteRowSource) GetRows(ctx context.Context, surveyID string) ([]mapping.Row, error) {
	rows, err := r.store.conn.QueryContext(ctx,
		`SELECT row_json FROM survey_rows WHERE survey_id = ? ORDER BY id`, surveyID)
	if err != nil {
		return nil, mapping.NewStoreError("get rows", err)
	}
	defer rows.Close()

	var result []mapping.Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, mapping.NewStoreError("scan row", err)
		}
		var row mapping.Row
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, mapping.NewStoreError("parse row", fmt.Errorf("survey %s: %w", surveyID, err))
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SeedSurvey регистрирует выгрузку и ее строки (используется тестами и скриптами загрузки)
func (r *sqliteRowSource) SeedSurvey(ctx context.Context, survey mapping.Survey, rows []mapping.Row) error {
	tx, err := r.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapping.NewStoreError("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO surveys (id, source, year) VALUES (?, ?, ?)`,
		survey.ID, survey.Source, survey.Year); err != nil {
		return mapping.NewStoreError("insert survey", err)
	}

	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return mapping.NewStoreError("marshal row", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO survey_rows (survey_id, row_json) VALUES (?, ?)`,
			survey.ID, string(data)); err != nil {
			return mapping.NewStoreError("insert row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapping.NewStoreError("commit", err)
	}
	return nil
}
