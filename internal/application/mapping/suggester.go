package mapping

import (
	"sort"

	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
)

// DefaultMaxSuggestions предел числа кандидатов по умолчанию
const DefaultMaxSuggestions = 5

// Suggester подбирает канонические имена для сырых терминов.
// Работает над готовыми срезами, поэтому одинаково пригоден
// для прямого чтения из хранилища и для данных из кэша
type Suggester struct {
	scorer *algorithms.Scorer
}

// NewSuggester создает подборщик с гибридным скорером
func NewSuggester(scorer *algorithms.Scorer) *Suggester {
	return &Suggester{scorer: scorer}
}

// candidate промежуточная оценка одного маппинга
type candidate struct {
	mapping    *mapping.CanonicalMapping
	confidence float64
	sameSource bool // Среди привязанных терминов есть термин того же источника
}

// Suggest возвращает кандидатов для термина, упорядоченных по убыванию уверенности.
// Точное попадание в историю решений дает единственного кандидата с уверенностью 1.0
func (s *Suggester) Suggest(
	rawTerm, surveySource string,
	mappings []mapping.CanonicalMapping,
	learned []mapping.LearnedMapping,
	max int,
) []mapping.Suggestion {
	if algorithms.NormalizeTerm(rawTerm) == "" {
		return []mapping.Suggestion{}
	}
	if max <= 0 {
		max = DefaultMaxSuggestions
	}

	// Сначала история решений: точное совпадение термина и источника
	// закрывает вопрос без оценки схожести
	key := termKey(rawTerm, surveySource)
	for i := range learned {
		if termKey(learned[i].RawTerm, learned[i].SurveySource) != key {
			continue
		}
		suggestion := mapping.Suggestion{
			CanonicalName: learned[i].CanonicalName,
			Confidence:    1.0,
			Learned:       true,
		}
		for j := range mappings {
			if mappings[j].CanonicalName == learned[i].CanonicalName {
				suggestion.MappingID = mappings[j].ID
				break
			}
		}
		return []mapping.Suggestion{suggestion}
	}

	normalizedSource := mapping.NormalizeSurveySource(surveySource)

	candidates := make([]candidate, 0, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		best := s.scorer.Score(rawTerm, m.CanonicalName)
		sameSource := false

		// Привязанные термины других источников часто ближе к новому
		// термину, чем само каноническое имя. Признак источника считается
		// по всем привязанным терминам, не только по лучшему
		for _, entry := range m.SourceEntries {
			if score := s.scorer.Score(rawTerm, entry.RawTerm); score > best {
				best = score
			}
			if !sameSource && mapping.NormalizeSurveySource(entry.SurveySource) == normalizedSource {
				sameSource = true
			}
		}

		if best > 0 {
			candidates = append(candidates, candidate{mapping: m, confidence: best, sameSource: sameSource})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.sameSource != b.sameSource {
			return a.sameSource
		}
		if len(a.mapping.SourceEntries) != len(b.mapping.SourceEntries) {
			return len(a.mapping.SourceEntries) > len(b.mapping.SourceEntries)
		}
		return a.mapping.CanonicalName < b.mapping.CanonicalName
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}

	result := make([]mapping.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, mapping.Suggestion{
			CanonicalName: c.mapping.CanonicalName,
			Confidence:    c.confidence,
			MappingID:     c.mapping.ID,
		})
	}
	return result
}
