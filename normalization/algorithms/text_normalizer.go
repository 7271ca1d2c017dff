package algorithms

import (
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unicode-корректное приведение к нижнему регистру (casefold, а не просто ToLower)
var lowerCaser = cases.Lower(language.English)

// NormalizeTerm выполняет нормализацию термина перед сравнением:
// нижний регистр и схлопывание пробелов
func NormalizeTerm(text string) string {
	text = lowerCaser.String(strings.TrimSpace(text))
	text = strings.Join(strings.Fields(text), " ")
	return text
}

// Tokenize разбивает термин на токены, отбрасывая знаки препинания
// "Pediatrics: General (Primary)" -> ["pediatrics", "general", "primary"]
func Tokenize(text string) []string {
	text = NormalizeTerm(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		// "&" и "and" считаем одним и тем же союзом
		if f == "and" {
			f = "&"
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// EnglishStemmer стеммер для английского языка на основе алгоритма Snowball
type EnglishStemmer struct {
	cache map[string]string
	mu    sync.RWMutex
}

// NewEnglishStemmer создает новый стеммер с кэшированием
func NewEnglishStemmer() *EnglishStemmer {
	return &EnglishStemmer{
		cache: make(map[string]string),
	}
}

// Stem возвращает основу слова
// Например: "surgical" -> "surgic", "regions" -> "region"
func (s *EnglishStemmer) Stem(word string) string {
	if word == "" {
		return ""
	}

	s.mu.RLock()
	if stemmed, ok := s.cache[word]; ok {
		s.mu.RUnlock()
		return stemmed
	}
	s.mu.RUnlock()

	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		// Snowball не справился — используем слово как есть
		stemmed = strings.ToLower(word)
	}

	s.mu.Lock()
	s.cache[word] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemTokens возвращает основы для набора токенов
func (s *EnglishStemmer) StemTokens(tokens []string) []string {
	stemmed := make([]string, len(tokens))
	for i, token := range tokens {
		stemmed[i] = s.Stem(token)
	}
	return stemmed
}

// Общий стеммер для токенного сравнения (стемминг детерминирован, кэш потокобезопасен)
var defaultStemmer = NewEnglishStemmer()

// TokenJaccardSimilarity вычисляет индекс Жаккара по множествам стеммированных токенов
// Устойчив к перестановке слов и морфологическим вариациям
func TokenJaccardSimilarity(s1, s2 string) float64 {
	set1 := tokenSet(s1)
	set2 := tokenSet(s2)

	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range set1 {
		if set2[token] {
			intersection++
		}
	}

	union := len(set1)
	for token := range set2 {
		if !set1[token] {
			union++
		}
	}

	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// tokenSet преобразует строку в множество стеммированных токенов
func tokenSet(text string) map[string]bool {
	tokens := defaultStemmer.StemTokens(Tokenize(text))
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}
