package mapping

import (
	"regexp"
	"strings"
)

// Метки источников часто различаются только годом выпуска:
// "Provider X 2025" и "Provider X" — один и тот же источник для целей маппинга
var trailingYearRe = regexp.MustCompile(`\s+(19|20)\d{2}$`)

// NormalizeSurveySource приводит метку источника к ключу сопоставления:
// нижний регистр, без хвостового года. Применяется только при поиске —
// записи в хранилище сохраняют исходную метку
func NormalizeSurveySource(source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	s = trailingYearRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SameSurveySource проверяет что две метки обозначают один источник
func SameSurveySource(a, b string) bool {
	return NormalizeSurveySource(a) == NormalizeSurveySource(b)
}
