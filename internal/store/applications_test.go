// internal/store/applications_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/common/database"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

func newAppStore(t *testing.T) (*ApplicationStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewApplicationStore(&database.PostgresClient{DB: db}, logger.NewTestLogger(t)), mock
}

func appRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "chat_id", "username", "language",
		"current_step", "collected_fields", "pending_selection", "status", "created_at", "updated_at",
	})
}

func TestApplicationStore_GetByUserID(t *testing.T) {
	store, mock := newAppStore(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM applications WHERE user_id`).
		WithArgs(int64(42)).
		WillReturnRows(appRows().AddRow(
			"app-1", int64(42), int64(42), "alice", "en",
			"full_name", []byte(`{"city":{"kind":"text","text":"Berlin"}}`), nil,
			models.StatusInProgress, now, now,
		))

	app, err := store.GetByUserID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, "full_name", app.CurrentStep)
	assert.Equal(t, "Berlin", app.CollectedFields["city"].Text)
	assert.Nil(t, app.PendingSelection)
	assert.False(t, app.IsTerminal())
}

func TestApplicationStore_GetByUserID_NotFound(t *testing.T) {
	store, mock := newAppStore(t)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE user_id`).
		WithArgs(int64(7)).
		WillReturnRows(appRows())

	_, err := store.GetByUserID(context.Background(), 7)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeApplicationNotFound))
}

func TestApplicationStore_Create_RaceAbsorbed(t *testing.T) {
	store, mock := newAppStore(t)

	now := time.Now()
	// Conflict: the insert returns no row, the existing row is fetched instead.
	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(appRows())
	mock.ExpectQuery(`SELECT .+ FROM applications WHERE user_id`).
		WithArgs(int64(42)).
		WillReturnRows(appRows().AddRow(
			"app-existing", int64(42), int64(42), "alice", "en",
			"full_name", []byte(`{}`), nil, models.StatusInProgress, now, now,
		))

	app, err := store.Create(context.Background(), 42, 42, "alice", "en", "full_name")
	require.NoError(t, err)
	assert.Equal(t, "app-existing", app.ID)
}

func TestApplicationStore_AdvanceStep(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantAdvanced bool
	}{
		{name: "advances when current step matches", rowsAffected: 1, wantAdvanced: true},
		{name: "no-op when another event advanced first", rowsAffected: 0, wantAdvanced: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newAppStore(t)

			mock.ExpectExec(`UPDATE applications`).
				WithArgs("city", sqlmock.AnyArg(), "app-1", "full_name", models.StatusInProgress).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			advanced, err := store.AdvanceStep(context.Background(), "app-1", "full_name", "city",
				"full_name", models.FieldValue{Kind: "text", Text: "Alice"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdvanced, advanced)
		})
	}
}

func TestApplicationStore_CompleteApplication_ExactlyOnce(t *testing.T) {
	store, mock := newAppStore(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs(models.StatusPendingReview, sqlmock.AnyArg(), "app-1", "last_step", models.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applications`).
		WithArgs(models.StatusPendingReview, sqlmock.AnyArg(), "app-1", "last_step", models.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 0))

	value := models.FieldValue{Kind: "choice", Choice: "yes"}

	first, err := store.CompleteApplication(context.Background(), "app-1", "last_step", "last_step", value)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.CompleteApplication(context.Background(), "app-1", "last_step", "last_step", value)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestApplicationStore_ListStalled(t *testing.T) {
	store, mock := newAppStore(t)

	stalledAt := time.Now().Add(-48 * time.Hour)
	mock.ExpectQuery(`SELECT id, user_id, chat_id`).
		WithArgs(models.StatusInProgress, "86400 seconds", 200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "chat_id", "username", "current_step", "updated_at"}).
			AddRow("app-1", int64(42), int64(42), "alice", "city", stalledAt))

	stalled, err := store.ListStalled(context.Background(), 24*time.Hour, 200)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "app-1", stalled[0].ID)
	assert.Equal(t, "city", stalled[0].CurrentStep)
	assert.WithinDuration(t, stalledAt, stalled[0].UpdatedAt, time.Second)
}

func TestApplicationStore_MarkPendingReview(t *testing.T) {
	store, mock := newAppStore(t)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs(models.StatusPendingReview, "app-1", models.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := store.MarkPendingReview(context.Background(), "app-1")
	require.NoError(t, err)
	assert.True(t, flipped)
}
