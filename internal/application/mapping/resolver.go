package mapping

import (
	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
)

// termKey ключ идентичности сырого термина: нормализованный термин
// плюс нормализованная метка источника (без года в хвосте)
func termKey(rawTerm, surveySource string) string {
	return algorithms.NormalizeTerm(rawTerm) + "|" + mapping.NormalizeSurveySource(surveySource)
}

// ResolveUnmapped возвращает термины инвентаря, не привязанные ни к одному
// каноническому маппингу. История решений здесь не учитывается:
// после удаления маппинга его термины снова считаются неразрешенными
func ResolveUnmapped(inventory []mapping.RawTerm, mappings []mapping.CanonicalMapping) []mapping.RawTerm {
	mapped := make(map[string]bool)
	for _, m := range mappings {
		for _, entry := range m.SourceEntries {
			mapped[termKey(entry.RawTerm, entry.SurveySource)] = true
		}
	}

	unmapped := make([]mapping.RawTerm, 0, len(inventory))
	for _, term := range inventory {
		if !mapped[termKey(term.Name, term.SurveySource)] {
			unmapped = append(unmapped, term)
		}
	}
	return unmapped
}
