package algorithms

import (
	"reflect"
	"testing"
)

// TestNormalizeTerm проверяет нормализацию терминов
func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Cardiology  ", "cardiology"},
		{"Allergy   &   Immunology", "allergy & immunology"},
		{"PEDIATRICS", "pediatrics"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTerm(tt.input); got != tt.expected {
			t.Errorf("NormalizeTerm(%q) = %q, ожидается %q", tt.input, got, tt.expected)
		}
	}
}

// TestTokenize проверяет разбиение термина на токены
func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Pediatrics: General (Primary)", []string{"pediatrics", "general", "primary"}},
		{"Allergy and Immunology", []string{"allergy", "&", "immunology"}},
		{"total_cash_compensation", []string{"total", "cash", "compensation"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.input)
		if len(got) == 0 && len(tt.expected) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Tokenize(%q) = %v, ожидается %v", tt.input, got, tt.expected)
		}
	}
}

// TestEnglishStemmer_Stem проверяет стемминг английских слов
func TestEnglishStemmer_Stem(t *testing.T) {
	stemmer := NewEnglishStemmer()

	// Морфологические варианты должны сводиться к общей основе
	if stemmer.Stem("regions") != stemmer.Stem("region") {
		t.Errorf("regions/region должны иметь общую основу: %q != %q",
			stemmer.Stem("regions"), stemmer.Stem("region"))
	}
	if stemmer.Stem("") != "" {
		t.Error("пустое слово должно давать пустую основу")
	}

	// Повторный вызов идет из кэша и даёт тот же результат
	first := stemmer.Stem("surgical")
	second := stemmer.Stem("surgical")
	if first != second {
		t.Errorf("кэшированный стем отличается: %q != %q", first, second)
	}
}

// TestTokenJaccardSimilarity проверяет токенное сходство
func TestTokenJaccardSimilarity(t *testing.T) {
	// Перестановка слов не влияет на множество токенов
	if got := TokenJaccardSimilarity("General Pediatrics", "Pediatrics General"); got != 1.0 {
		t.Errorf("перестановка слов должна давать 1.0, получено %v", got)
	}

	// "&" и "and" считаются одним токеном
	if got := TokenJaccardSimilarity("Allergy & Immunology", "Allergy and Immunology"); got != 1.0 {
		t.Errorf("амперсанд и союз and должны быть эквивалентны, получено %v", got)
	}

	if got := TokenJaccardSimilarity("Cardiology", "Urology"); got != 0.0 {
		t.Errorf("непересекающиеся термины должны давать 0, получено %v", got)
	}

	if got := TokenJaccardSimilarity("", ""); got != 1.0 {
		t.Errorf("две пустые строки на уровне токенов дают 1.0, получено %v", got)
	}
}
