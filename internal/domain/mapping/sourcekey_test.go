package mapping

import (
	"testing"
)

// TestNormalizeSurveySource проверяет нормализацию меток источников
func TestNormalizeSurveySource(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Provider X 2025", "provider x"},
		{"Provider X", "provider x"},
		{"ProviderY Report 2025", "providery report"},
		{"ProviderY Report", "providery report"},
		{"MGMA 2024", "mgma"},
		{"Survey 1999", "survey"},
		// Год внутри метки не трогаем — только хвостовой
		{"2024 Annual Survey", "2024 annual survey"},
		// Числа, не похожие на год, остаются
		{"Provider 12", "provider 12"},
		{"  Provider Z 2023  ", "provider z"},
	}

	for _, tt := range tests {
		if got := NormalizeSurveySource(tt.input); got != tt.expected {
			t.Errorf("NormalizeSurveySource(%q) = %q, ожидается %q", tt.input, got, tt.expected)
		}
	}
}

// TestSameSurveySource проверяет сопоставление источников
func TestSameSurveySource(t *testing.T) {
	if !SameSurveySource("Provider X 2025", "Provider X") {
		t.Error("метки, различающиеся только годом, должны совпадать")
	}
	if !SameSurveySource("provider x", "Provider X 2024") {
		t.Error("сравнение должно быть регистронезависимым")
	}
	if SameSurveySource("Provider X", "Provider Y") {
		t.Error("разные источники не должны совпадать")
	}
}

// TestEntityType_Valid проверяет валидацию типов сущностей
func TestEntityType_Valid(t *testing.T) {
	for _, et := range AllEntityTypes() {
		if !et.Valid() {
			t.Errorf("тип %q должен быть валидным", et)
		}
	}
	if EntityType("unknown").Valid() {
		t.Error("неизвестный тип не должен проходить валидацию")
	}
}
