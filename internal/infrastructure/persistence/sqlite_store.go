package persistence

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig конфигурация подключения к SQLite
type SQLiteConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLiteStore обертка над подключением к SQLite.
// Один Store обслуживает оба репозитория и источник строк
type SQLiteStore struct {
	conn *sql.DB
}

// isInMemory определяет что путь относится к in-memory SQLite
func isInMemory(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}
	// Формат file:memdb?mode=memory&cache=shared также хранит БД в памяти
	return strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory")
}

// NewSQLiteStore открывает подключение и применяет миграции
func NewSQLiteStore(dbPath string, config SQLiteConfig) (*SQLiteStore, error) {
	// Для in-memory SQLite требуется ровно одно соединение,
	// иначе каждое новое соединение получит пустую БД без таблиц
	if isInMemory(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &SQLiteStore{conn: conn}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate создает схему хранилища
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS canonical_mappings (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			canonical_name TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(entity_type, scope, canonical_name)
		)`,
		`CREATE TABLE IF NOT EXISTS source_entries (
			id TEXT PRIMARY KEY,
			mapping_id TEXT NOT NULL REFERENCES canonical_mappings(id) ON DELETE CASCADE,
			entity_type TEXT NOT NULL,
			raw_term TEXT NOT NULL,
			survey_source TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT ''
		)`,
		// Тройка (термин, источник, scope) принадлежит максимум одному маппингу
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_source_entries_triple
			ON source_entries(entity_type, scope, lower(raw_term), survey_source)`,
		`CREATE INDEX IF NOT EXISTS idx_source_entries_mapping
			ON source_entries(mapping_id)`,
		`CREATE TABLE IF NOT EXISTS learned_mappings (
			entity_type TEXT NOT NULL,
			raw_term TEXT NOT NULL,
			survey_source TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			canonical_name TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY(entity_type, raw_term, survey_source, scope)
		)`,
		`CREATE TABLE IF NOT EXISTS surveys (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS survey_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
			row_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_survey_rows_survey
			ON survey_rows(survey_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Conn возвращает нижележащее подключение (для health check)
func (s *SQLiteStore) Conn() *sql.DB {
	return s.conn
}

// Ping проверяет доступность хранилища
func (s *SQLiteStore) Ping() error {
	return s.conn.Ping()
}

// Close закрывает подключение
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
