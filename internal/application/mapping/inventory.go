package mapping

import (
	"context"
	"sort"
	"strings"

	"surveyserver/internal/domain/mapping"
	"surveyserver/normalization/algorithms"
)

// entityFieldNames имена полей строки, из которых извлекаются значения
// каждого типа сущности. Провайдеры называют колонки по-разному
var entityFieldNames = map[mapping.EntityType][]string{
	mapping.EntityTypeSpecialty:    {"specialty", "specialty_name", "physician_specialty"},
	mapping.EntityTypeRegion:       {"region", "geographic_region", "geo_region"},
	mapping.EntityTypeProviderType: {"provider_type", "provider_category", "staff_type"},
}

// identityColumns колонки, которые несут идентичность строки, а не измерение.
// Не попадают в инвентарь переменных
var identityColumns = func() map[string]bool {
	set := make(map[string]bool)
	for _, fields := range entityFieldNames {
		for _, f := range fields {
			set[f] = true
		}
	}
	return set
}()

// Inventory строит инвентарь сырых терминов по загруженным данным.
// Термины вычисляются по требованию и нигде не хранятся
type Inventory struct {
	rows mapping.RowSource
}

// NewInventory создает инвентарь поверх источника строк
func NewInventory(rows mapping.RowSource) *Inventory {
	return &Inventory{rows: rows}
}

// termAccumulator накапливает частоты по нормализованному ключу,
// сохраняя первое наблюдавшееся написание
type termAccumulator struct {
	terms map[string]*mapping.RawTerm
}

func newTermAccumulator() *termAccumulator {
	return &termAccumulator{terms: make(map[string]*mapping.RawTerm)}
}

func (a *termAccumulator) add(entityType mapping.EntityType, rawValue, sourceLabel string) {
	value := strings.TrimSpace(rawValue)
	if value == "" {
		return
	}
	key := algorithms.NormalizeTerm(value) + "|" + mapping.NormalizeSurveySource(sourceLabel)
	if existing, ok := a.terms[key]; ok {
		existing.Frequency++
		return
	}
	a.terms[key] = &mapping.RawTerm{
		Name:         value,
		SurveySource: sourceLabel,
		EntityType:   entityType,
		Frequency:    1,
	}
}

// sorted возвращает термины по убыванию частоты, затем по имени и источнику
func (a *termAccumulator) sorted() []mapping.RawTerm {
	result := make([]mapping.RawTerm, 0, len(a.terms))
	for _, t := range a.terms {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Frequency != result[j].Frequency {
			return result[i].Frequency > result[j].Frequency
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].SurveySource < result[j].SurveySource
	})
	return result
}

// Collect возвращает все сырые термины типа сущности по всем выгрузкам.
// Для типа variable терминами являются имена колонок, для остальных — значения
// соответствующих полей
func (inv *Inventory) Collect(ctx context.Context, entityType mapping.EntityType) ([]mapping.RawTerm, error) {
	if !entityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}

	surveys, err := inv.rows.ListSurveys(ctx)
	if err != nil {
		return nil, err
	}

	acc := newTermAccumulator()
	for _, survey := range surveys {
		rows, err := inv.rows.GetRows(ctx, survey.ID)
		if err != nil {
			return nil, err
		}
		if entityType == mapping.EntityTypeVariable {
			collectVariables(acc, survey.Source, rows)
			continue
		}
		collectValues(acc, entityType, survey.Source, rows)
	}

	return acc.sorted(), nil
}

// collectValues извлекает значения полей типа сущности из строк
func collectValues(acc *termAccumulator, entityType mapping.EntityType, sourceLabel string, rows []mapping.Row) {
	fields := entityFieldNames[entityType]
	for _, row := range rows {
		for _, field := range fields {
			if value, ok := row[field]; ok {
				acc.add(entityType, value, sourceLabel)
			}
		}
	}
}

// collectVariables собирает имена колонок-измерений.
// Частота — число строк, где колонка присутствует с непустым значением
func collectVariables(acc *termAccumulator, sourceLabel string, rows []mapping.Row) {
	for _, row := range rows {
		for column, value := range row {
			if identityColumns[column] {
				continue
			}
			if strings.TrimSpace(value) == "" {
				continue
			}
			acc.add(mapping.EntityTypeVariable, column, sourceLabel)
		}
	}
}
