// internal/catalog/service.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	"intake-bot/internal/store"
)

// Service serves the question catalog to the flow. Steps are fetched fresh
// on every call so operator edits take effect mid-conversation.
type Service struct {
	catalog *store.CatalogStore
	log     logger.Logger
}

func NewService(catalog *store.CatalogStore, log logger.Logger) *Service {
	return &Service{catalog: catalog, log: log}
}

// Steps returns the catalog ordered by position, with options normalized.
func (s *Service) Steps(ctx context.Context) ([]models.QuestionDefinition, error) {
	steps, rawOptions, err := s.catalog.ListSteps(ctx)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, stderrors.NewCatalogEmptyError()
	}

	for i := range steps {
		opts, err := NormalizeOptions(rawOptions[i])
		if err != nil {
			return nil, stderrors.NewCatalogInconsistentError(steps[i].StepID)
		}
		steps[i].Options = opts
	}
	return steps, nil
}

// NormalizeOptions accepts both catalog option encodings: a bare string,
// which becomes both token and label, and an object with explicit fields.
func NormalizeOptions(raw json.RawMessage) ([]models.Option, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode options array: %w", err)
	}

	var options []models.Option
	for _, entry := range entries {
		trimmed := strings.TrimSpace(string(entry))
		if strings.HasPrefix(trimmed, `"`) {
			var label string
			if err := json.Unmarshal(entry, &label); err != nil {
				return nil, fmt.Errorf("decode string option: %w", err)
			}
			options = append(options, models.Option{Token: TokenFromLabel(label), Label: label})
			continue
		}

		var opt models.Option
		if err := json.Unmarshal(entry, &opt); err != nil {
			return nil, fmt.Errorf("decode object option: %w", err)
		}
		if opt.Token == "" {
			opt.Token = TokenFromLabel(opt.Label)
		}
		if opt.Label == "" {
			return nil, fmt.Errorf("option without label")
		}
		options = append(options, opt)
	}
	return options, nil
}

// TokenFromLabel derives a stable callback token from a display label.
func TokenFromLabel(label string) string {
	token := strings.ToLower(strings.TrimSpace(label))
	token = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, token)
	return strings.Trim(token, "_")
}

// FirstActive returns the first active step.
func FirstActive(steps []models.QuestionDefinition) (*models.QuestionDefinition, bool) {
	for i := range steps {
		if steps[i].Active {
			return &steps[i], true
		}
	}
	return nil, false
}

// NextActive returns the first active step positioned after the given one.
func NextActive(steps []models.QuestionDefinition, after *models.QuestionDefinition) (*models.QuestionDefinition, bool) {
	for i := range steps {
		if steps[i].Active && steps[i].Position > after.Position {
			return &steps[i], true
		}
	}
	return nil, false
}

// Find returns the step with the given id.
func Find(steps []models.QuestionDefinition, stepID string) (*models.QuestionDefinition, bool) {
	for i := range steps {
		if steps[i].StepID == stepID {
			return &steps[i], true
		}
	}
	return nil, false
}

// Resolution describes what the flow should do for an application's
// current step against the live catalog.
type Resolution struct {
	Step     *models.QuestionDefinition
	Complete bool
	Flagged  bool
}

// Resolve maps an application's current step to a live catalog step.
// When the recorded step vanished or was deactivated, it skips forward to
// the first unanswered active step. With no such step left, Complete is set
// when every active step has an answer, Flagged when the catalog offers
// nothing usable at all.
func (s *Service) Resolve(ctx context.Context, app *models.Application) (*Resolution, []models.QuestionDefinition, error) {
	steps, err := s.Steps(ctx)
	if err != nil {
		return nil, nil, err
	}

	if step, ok := Find(steps, app.CurrentStep); ok && step.Active {
		return &Resolution{Step: step}, steps, nil
	}

	s.log.Warn("current step missing or inactive in catalog, skipping forward", map[string]interface{}{
		"applicationId": app.ID,
		"currentStep":   app.CurrentStep,
	})

	answered := 0
	for i := range steps {
		if !steps[i].Active {
			continue
		}
		if app.HasAnswer(steps[i].StepID) {
			answered++
			continue
		}
		return &Resolution{Step: &steps[i]}, steps, nil
	}

	if answered > 0 {
		return &Resolution{Complete: true}, steps, nil
	}
	return &Resolution{Flagged: true}, steps, nil
}
