package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
)

func newSuggester() *Suggester {
	return NewSuggester(algorithms.NewScorer(algorithms.DefaultSimilarityWeights(), 0))
}

// TestSuggester_SameSourceTieBreak проверяет что при равной уверенности
// выигрывает кандидат, среди терминов которого есть тот же источник —
// даже если лучший балл получен по термину другого источника
func TestSuggester_SameSourceTieBreak(t *testing.T) {
	s := newSuggester()

	// У обоих кандидатов точное совпадение с термином Provider B (балл 1.0),
	// но только у второго есть привязка из Provider A
	mappings := []mapping.CanonicalMapping{
		{
			ID:            "m1",
			CanonicalName: "Abdominal Imaging",
			SourceEntries: []mapping.SourceEntry{
				{RawTerm: "Radiology", SurveySource: "Provider B"},
				{RawTerm: "Imaging", SurveySource: "Provider B"},
			},
		},
		{
			ID:            "m2",
			CanonicalName: "Diagnostic Radiology",
			SourceEntries: []mapping.SourceEntry{
				{RawTerm: "Radiology", SurveySource: "Provider B"},
				{RawTerm: "X-Ray", SurveySource: "Provider A"},
			},
		},
	}

	suggestions := s.Suggest("Radiology", "Provider A", mappings, nil, 5)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "m2", suggestions[0].MappingID)
	assert.Equal(t, 1.0, suggestions[0].Confidence)
}

// TestSuggester_SameSourceTieBreak_YearSuffix проверяет что признак источника
// учитывает нормализацию метки: выгрузка другого года считается тем же источником
func TestSuggester_SameSourceTieBreak_YearSuffix(t *testing.T) {
	s := newSuggester()

	mappings := []mapping.CanonicalMapping{
		{
			ID:            "m1",
			CanonicalName: "Abdominal Imaging",
			SourceEntries: []mapping.SourceEntry{
				{RawTerm: "Radiology", SurveySource: "Provider B"},
			},
		},
		{
			ID:            "m2",
			CanonicalName: "Diagnostic Radiology",
			SourceEntries: []mapping.SourceEntry{
				{RawTerm: "Radiology", SurveySource: "Provider A 2024"},
			},
		},
	}

	suggestions := s.Suggest("Radiology", "Provider A 2025", mappings, nil, 5)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "m2", suggestions[0].MappingID)
}
