// internal/store/applications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intake-bot/internal/common/database"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

// ApplicationStore persists questionnaire progress. Concurrency control is
// done in SQL: step advances compare-and-swap on current_step, and the
// terminal flip is guarded on status, so duplicated or out-of-order events
// collapse into no-ops at the database.
type ApplicationStore struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewApplicationStore(db *database.PostgresClient, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{db: db, log: log}
}

// StalledApplication is the projection the watchdog sweeps over.
type StalledApplication struct {
	ID          string
	UserID      int64
	ChatID      int64
	Username    string
	CurrentStep string
	UpdatedAt   time.Time
}

const applicationColumns = `id, user_id, chat_id, username, language, current_step, collected_fields, pending_selection, status, created_at, updated_at`

func scanApplication(row interface{ Scan(...interface{}) error }) (*models.Application, error) {
	var app models.Application
	var username, language sql.NullString
	var collected []byte
	var pending []byte

	err := row.Scan(&app.ID, &app.UserID, &app.ChatID, &username, &language,
		&app.CurrentStep, &collected, &pending, &app.Status, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	app.Username = username.String
	app.Language = language.String

	app.CollectedFields = make(map[string]models.FieldValue)
	if len(collected) > 0 {
		if err := json.Unmarshal(collected, &app.CollectedFields); err != nil {
			return nil, fmt.Errorf("decode collected_fields: %w", err)
		}
	}
	if len(pending) > 0 {
		var sel models.PendingSelection
		if err := json.Unmarshal(pending, &sel); err != nil {
			return nil, fmt.Errorf("decode pending_selection: %w", err)
		}
		app.PendingSelection = &sel
	}
	return &app, nil
}

// GetByUserID loads the user's application, or APPLICATION_NOT_FOUND.
func (s *ApplicationStore) GetByUserID(ctx context.Context, userID int64) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE user_id = $1`, applicationColumns)

	app, err := scanApplication(s.db.DB.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewApplicationNotFoundError(userID)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("get application", err)
	}
	return app, nil
}

// Create inserts a fresh application at the given first step. A concurrent
// insert for the same user is absorbed: the existing row wins and is returned.
func (s *ApplicationStore) Create(ctx context.Context, userID, chatID int64, username, language, firstStep string) (*models.Application, error) {
	query := fmt.Sprintf(`
		INSERT INTO applications (id, user_id, chat_id, username, language, current_step, collected_fields, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '{}'::jsonb, $7, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING %s`, applicationColumns)

	app, err := scanApplication(s.db.DB.QueryRowContext(ctx, query,
		uuid.New().String(), userID, chatID, username, language, firstStep, models.StatusInProgress))
	if err == sql.ErrNoRows {
		// Lost the race to another event for the same user.
		return s.GetByUserID(ctx, userID)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("create application", err)
	}
	return app, nil
}

// AdvanceStep records an answer and moves current_step forward in one
// compare-and-swap. Returns false when the expected step no longer matches,
// meaning another event already advanced past it.
func (s *ApplicationStore) AdvanceStep(ctx context.Context, appID, expectedStep, nextStep, fieldKey string, value models.FieldValue) (bool, error) {
	patch, err := json.Marshal(map[string]models.FieldValue{fieldKey: value})
	if err != nil {
		return false, fmt.Errorf("encode answer: %w", err)
	}

	query := `
		UPDATE applications
		SET current_step = $1,
		    collected_fields = collected_fields || $2::jsonb,
		    pending_selection = NULL,
		    updated_at = NOW()
		WHERE id = $3 AND current_step = $4 AND status = $5`

	res, err := s.db.DB.ExecContext(ctx, query, nextStep, patch, appID, expectedStep, models.StatusInProgress)
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("advance step", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("advance step", err)
	}
	return rows == 1, nil
}

// CompleteApplication records the final answer and flips the application to
// pending_review in one guarded statement. Exactly one event observes true.
func (s *ApplicationStore) CompleteApplication(ctx context.Context, appID, expectedStep, fieldKey string, value models.FieldValue) (bool, error) {
	patch, err := json.Marshal(map[string]models.FieldValue{fieldKey: value})
	if err != nil {
		return false, fmt.Errorf("encode answer: %w", err)
	}

	query := `
		UPDATE applications
		SET status = $1,
		    collected_fields = collected_fields || $2::jsonb,
		    pending_selection = NULL,
		    updated_at = NOW()
		WHERE id = $3 AND current_step = $4 AND status = $5`

	res, err := s.db.DB.ExecContext(ctx, query, models.StatusPendingReview, patch, appID, expectedStep, models.StatusInProgress)
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("complete application", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("complete application", err)
	}
	return rows == 1, nil
}

// MarkPendingReview flips the application to pending_review without a new
// answer, used when the live catalog has nothing left to ask. Guarded on
// status so only one event observes the transition.
func (s *ApplicationStore) MarkPendingReview(ctx context.Context, appID string) (bool, error) {
	query := `
		UPDATE applications
		SET status = $1, pending_selection = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	res, err := s.db.DB.ExecContext(ctx, query, models.StatusPendingReview, appID, models.StatusInProgress)
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("mark pending review", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("mark pending review", err)
	}
	return rows == 1, nil
}

// SavePendingSelection stores partial multi-choice or media input.
// Deliberately leaves updated_at alone: only step transitions count as
// progress for the staleness watchdog.
func (s *ApplicationStore) SavePendingSelection(ctx context.Context, appID string, sel *models.PendingSelection) error {
	var payload interface{}
	if sel != nil {
		data, err := json.Marshal(sel)
		if err != nil {
			return fmt.Errorf("encode pending selection: %w", err)
		}
		payload = data
	}

	query := `UPDATE applications SET pending_selection = $1 WHERE id = $2 AND status = $3`
	_, err := s.db.DB.ExecContext(ctx, query, payload, appID, models.StatusInProgress)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("save pending selection", err)
	}
	return nil
}

// SetLanguage records the user's preferred language.
func (s *ApplicationStore) SetLanguage(ctx context.Context, appID, language string) error {
	query := `UPDATE applications SET language = $1 WHERE id = $2`
	_, err := s.db.DB.ExecContext(ctx, query, language, appID)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("set language", err)
	}
	return nil
}

// ListStalled returns in-progress applications untouched for at least the
// threshold, oldest first.
func (s *ApplicationStore) ListStalled(ctx context.Context, threshold time.Duration, limit int) ([]StalledApplication, error) {
	query := `
		SELECT id, user_id, chat_id, COALESCE(username, ''), current_step, updated_at
		FROM applications
		WHERE status = $1 AND updated_at < NOW() - $2::interval
		ORDER BY updated_at ASC
		LIMIT $3`

	interval := fmt.Sprintf("%d seconds", int64(threshold.Seconds()))
	rows, err := s.db.DB.QueryContext(ctx, query, models.StatusInProgress, interval, limit)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list stalled", err)
	}
	defer rows.Close()

	var stalled []StalledApplication
	for rows.Next() {
		var sa StalledApplication
		if err := rows.Scan(&sa.ID, &sa.UserID, &sa.ChatID, &sa.Username, &sa.CurrentStep, &sa.UpdatedAt); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("scan stalled", err)
		}
		stalled = append(stalled, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list stalled", err)
	}
	return stalled, nil
}

// FlagForOperator queues an application for manual attention when automatic
// processing cannot continue.
func (s *ApplicationStore) FlagForOperator(ctx context.Context, appID, reason string) error {
	query := `
		INSERT INTO operator_queue (id, application_id, reason, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (application_id) DO NOTHING`

	_, err := s.db.DB.ExecContext(ctx, query, uuid.New().String(), appID, reason)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("flag for operator", err)
	}
	return nil
}
