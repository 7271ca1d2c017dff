package mapping

import (
	"context"
	"fmt"

	"surveyserver/internal/domain/mapping"
)

// Причины пропуска термина при пакетном разрешении
const (
	reasonBelowThreshold = "below threshold"
	reasonNoCandidates   = "no candidates"
	reasonWriteFailed    = "write failed"
)

// RunBatchResolution автоматически привязывает неразрешенные термины,
// для которых лучший кандидат проходит порог уверенности.
// Ошибка обработки одного термина не прерывает пакет: термин
// помечается пропущенным, остальные обрабатываются дальше
func (e *Engine) RunBatchResolution(ctx context.Context, cfg mapping.BatchConfig) (*mapping.BatchResult, error) {
	if !cfg.EntityType.Valid() {
		return nil, mapping.ErrInvalidEntityType
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %g", cfg.Threshold)
	}

	unmapped, err := e.ListUnmapped(ctx, cfg.EntityType, cfg.Scope)
	if err != nil {
		return nil, err
	}
	if cfg.MaxItems > 0 && len(unmapped) > cfg.MaxItems {
		unmapped = unmapped[:cfg.MaxItems]
	}

	learned, err := e.learned.List(ctx, cfg.EntityType, cfg.Scope)
	if err != nil {
		return nil, err
	}

	result := &mapping.BatchResult{
		Total: len(unmapped),
		Items: make([]mapping.BatchItem, 0, len(unmapped)),
	}

	// Список маппингов перечитывается после каждой успешной привязки:
	// созданный на предыдущем шаге маппинг должен быть виден следующим терминам
	mappings, err := e.mappings.List(ctx, cfg.EntityType, cfg.Scope)
	if err != nil {
		return nil, err
	}

	for _, term := range unmapped {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := mapping.BatchItem{RawTerm: term.Name, SurveySource: term.SurveySource}
		suggestions := e.suggester.Suggest(term.Name, term.SurveySource, mappings, learned, 1)

		switch {
		case len(suggestions) == 0:
			item.Reason = reasonNoCandidates
		case suggestions[0].Confidence < cfg.Threshold:
			item.Suggestion = &suggestions[0]
			item.Reason = reasonBelowThreshold
		default:
			item.Suggestion = &suggestions[0]
			entry := mapping.SourceEntry{RawTerm: term.Name, SurveySource: term.SurveySource}
			if _, err := e.CreateMapping(ctx, cfg.EntityType, cfg.Scope, suggestions[0].CanonicalName, []mapping.SourceEntry{entry}); err != nil {
				e.logger.Warn("batch item failed",
					"raw_term", term.Name, "survey_source", term.SurveySource, "error", err)
				item.Reason = reasonWriteFailed
			} else {
				item.Mapped = true
				result.Mapped++
				if mappings, err = e.mappings.List(ctx, cfg.EntityType, cfg.Scope); err != nil {
					return nil, err
				}
			}
		}

		if !item.Mapped {
			result.Skipped++
		}
		result.Items = append(result.Items, item)
	}

	e.logger.Info("batch resolution finished",
		"entity_type", cfg.EntityType, "scope", cfg.Scope,
		"total", result.Total, "mapped", result.Mapped, "skipped", result.Skipped)
	return result, nil
}
