package mapping

import (
	"time"
)

// EntityType тип нормализуемой сущности
type EntityType string

const (
	EntityTypeSpecialty    EntityType = "specialty"     // Медицинская специальность
	EntityTypeRegion       EntityType = "region"        // Географический регион
	EntityTypeProviderType EntityType = "provider_type" // Категория провайдера
	EntityTypeVariable     EntityType = "variable"      // Измеряемая переменная (колонка)
)

// AllEntityTypes возвращает все поддерживаемые типы сущностей
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeSpecialty,
		EntityTypeRegion,
		EntityTypeProviderType,
		EntityTypeVariable,
	}
}

// Valid проверяет что тип сущности поддерживается
func (et EntityType) Valid() bool {
	switch et {
	case EntityTypeSpecialty, EntityTypeRegion, EntityTypeProviderType, EntityTypeVariable:
		return true
	}
	return false
}

// SourceEntry связь сырого термина из конкретного источника с каноническим маппингом
// Поле SurveySource хранит исходную метку источника без нормализации —
// нормализация года применяется только при поиске
type SourceEntry struct {
	ID           string `json:"id"`
	RawTerm      string `json:"raw_term"`
	SurveySource string `json:"survey_source"`
	Scope        string `json:"scope,omitempty"`
}

// CanonicalMapping каноническое имя сущности и набор сырых терминов, сведенных к нему
type CanonicalMapping struct {
	ID            string        `json:"id"`
	EntityType    EntityType    `json:"entity_type"`
	CanonicalName string        `json:"canonical_name"`
	Scope         string        `json:"scope,omitempty"`
	SourceEntries []SourceEntry `json:"source_entries"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// LearnedMapping запись о принятом решении: какой канонический термин
// был выбран для тройки (сырой термин, источник, scope).
// Живет независимо от канонического маппинга и переживает его удаление
type LearnedMapping struct {
	EntityType    EntityType `json:"entity_type"`
	RawTerm       string     `json:"raw_term"`
	SurveySource  string     `json:"survey_source"`
	Scope         string     `json:"scope,omitempty"`
	CanonicalName string     `json:"canonical_name"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RawTerm сырой термин, наблюдаемый в загруженных данных
// Вычисляется по требованию, не персистентен
type RawTerm struct {
	Name         string     `json:"name"`
	SurveySource string     `json:"survey_source"`
	EntityType   EntityType `json:"entity_type"`
	Frequency    int        `json:"frequency"`
}

// Suggestion кандидат канонического имени для сырого термина
type Suggestion struct {
	CanonicalName string  `json:"canonical_name"`
	Confidence    float64 `json:"confidence"`
	MappingID     string  `json:"mapping_id,omitempty"`
	Learned       bool    `json:"learned"` // Найдено в истории решений, а не по схожести
}

// BatchConfig конфигурация пакетного разрешения
type BatchConfig struct {
	EntityType EntityType `json:"entity_type"`
	Scope      string     `json:"scope,omitempty"`
	Threshold  float64    `json:"threshold"`
	MaxItems   int        `json:"max_items,omitempty"`
}

// BatchItem результат обработки одного термина при пакетном разрешении
type BatchItem struct {
	RawTerm      string      `json:"raw_term"`
	SurveySource string      `json:"survey_source"`
	Suggestion   *Suggestion `json:"suggestion,omitempty"`
	Mapped       bool        `json:"mapped"`
	Reason       string      `json:"reason,omitempty"` // Почему термин пропущен
}

// BatchResult итог пакетного разрешения
type BatchResult struct {
	Total   int         `json:"total"`
	Mapped  int         `json:"mapped"`
	Skipped int         `json:"skipped"`
	Items   []BatchItem `json:"items"`
}

// Survey зарегистрированный источник данных (выгрузка одного провайдера)
type Survey struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Year   int    `json:"year,omitempty"`
}

// Row строка загруженных данных: плоское отображение имени поля в значение
type Row map[string]string
