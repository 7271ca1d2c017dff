package mapping

import (
	"errors"
	"fmt"
)

// Ошибки предметной области. Транслируются в HTTP статусы на уровне API
var (
	// ErrDuplicateSourceEntry тройка (сырой термин, источник, scope) уже
	// привязана к другому каноническому маппингу
	ErrDuplicateSourceEntry = errors.New("source entry already mapped")

	// ErrMappingNotFound канонический маппинг не найден
	ErrMappingNotFound = errors.New("canonical mapping not found")

	// ErrStoreUnavailable хранилище недоступно, операция прервана без частичной записи
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrInvalidEntityType неподдерживаемый тип сущности
	ErrInvalidEntityType = errors.New("invalid entity type")
)

// DuplicateSourceEntryError детализированная ошибка коллизии source entry
type DuplicateSourceEntryError struct {
	RawTerm      string
	SurveySource string
	Scope        string
	ExistingID   string // ID маппинга, которому тройка уже принадлежит
}

// Error реализует интерфейс error
func (e *DuplicateSourceEntryError) Error() string {
	return fmt.Sprintf("source entry (%q, %q, %q) already belongs to mapping %s",
		e.RawTerm, e.SurveySource, e.Scope, e.ExistingID)
}

// Unwrap позволяет errors.Is(err, ErrDuplicateSourceEntry)
func (e *DuplicateSourceEntryError) Unwrap() error {
	return ErrDuplicateSourceEntry
}

// StoreError ошибка обращения к хранилищу с контекстом операции
type StoreError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap позволяет errors.Is(err, ErrStoreUnavailable)
func (e *StoreError) Unwrap() error {
	return ErrStoreUnavailable
}

// NewStoreError оборачивает ошибку хранилища
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
