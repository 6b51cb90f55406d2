// internal/store/catalog.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"intake-bot/internal/common/database"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

// CatalogStore reads the question catalog. The catalog is operator-editable
// at runtime, so callers fetch it fresh rather than caching.
type CatalogStore struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewCatalogStore(db *database.PostgresClient, log logger.Logger) *CatalogStore {
	return &CatalogStore{db: db, log: log}
}

// ListSteps returns all catalog steps ordered by position. Options come back
// as raw JSON for the catalog service to normalize.
func (s *CatalogStore) ListSteps(ctx context.Context) ([]models.QuestionDefinition, []json.RawMessage, error) {
	query := `
		SELECT step_id, position, prompt, input_kind, COALESCE(options, '[]'::jsonb), active
		FROM question_catalog
		ORDER BY position ASC`

	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, stderrors.NewQueryExecutionFailedError("list catalog steps", err)
	}
	defer rows.Close()

	var steps []models.QuestionDefinition
	var rawOptions []json.RawMessage
	for rows.Next() {
		var q models.QuestionDefinition
		var opts []byte
		if err := rows.Scan(&q.StepID, &q.Position, &q.Prompt, &q.InputKind, &opts, &q.Active); err != nil {
			return nil, nil, stderrors.NewQueryExecutionFailedError("scan catalog step", err)
		}
		steps = append(steps, q)
		rawOptions = append(rawOptions, json.RawMessage(opts))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, stderrors.NewQueryExecutionFailedError("list catalog steps", err)
	}
	return steps, rawOptions, nil
}

// ReplaceAll swaps the whole catalog for a validated seed document.
func (s *CatalogStore) ReplaceAll(ctx context.Context, steps []models.QuestionDefinition) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("begin catalog replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_catalog`); err != nil {
		return stderrors.NewQueryExecutionFailedError("clear catalog", err)
	}

	insert := `
		INSERT INTO question_catalog (step_id, position, prompt, input_kind, options, active)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`
	for _, q := range steps {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options for %s: %w", q.StepID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, q.StepID, q.Position, q.Prompt, q.InputKind, opts, q.Active); err != nil {
			return stderrors.NewQueryExecutionFailedError("insert catalog step", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stderrors.NewQueryExecutionFailedError("commit catalog replace", err)
	}
	return nil
}
