// internal/bot/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/common/database"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
	"intake-bot/internal/store"
)

// ==========================
// Mocks
// ==========================

type mockChat struct {
	sent    []string
	chatIDs []int64
	err     error
}

func (m *mockChat) SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, text)
	m.chatIDs = append(m.chatIDs, chatID)
	return &telegram.Message{}, nil
}

type mockEmail struct {
	sent []string
	err  error
}

func (m *mockEmail) SendPlainEmail(ctx context.Context, from, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type mockSMS struct {
	sent []string
}

func (m *mockSMS) SendSMS(ctx context.Context, phoneNumber, message string) error {
	m.sent = append(m.sent, phoneNumber)
	return nil
}

type notifyEnv struct {
	notifier *Notifier
	mock     sqlmock.Sqlmock
	chat     *mockChat
	email    *mockEmail
	sms      *mockSMS
}

func newNotifyEnv(t *testing.T) *notifyEnv {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	log := logger.NewTestLogger(t)
	pg := &database.PostgresClient{DB: db}
	recipients := store.NewRecipientStore(pg, log)
	dedup := store.NewDedupStore(&database.RedisClient{Client: redisClient}, log)

	cfg := DefaultConfig()
	cfg.EmailEnabled = true
	cfg.EmailFrom = "bot@example.com"
	cfg.SMSEnabled = true

	env := &notifyEnv{
		mock:  dbMock,
		chat:  &mockChat{},
		email: &mockEmail{},
		sms:   &mockSMS{},
	}
	env.notifier = NewNotifier(cfg, recipients, dedup, env.chat, env.email, env.sms, log)
	return env
}

func recipientRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "chat_id", "email", "phone", "high_priority", "active"})
}

func (e *notifyEnv) expectRecipients(rows *sqlmock.Rows, audits int) {
	e.mock.ExpectQuery(`SELECT id, name, chat_id`).WillReturnRows(rows)
	for i := 0; i < audits; i++ {
		e.mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(0, 1))
	}
}

func reviewApp() *models.Application {
	return &models.Application{ID: "app-1", UserID: 42, Username: "alice", Status: models.StatusPendingReview}
}

// ==========================
// Review Fan-Out
// ==========================

func TestNotifyReviewReady_FansOutAllChannels(t *testing.T) {
	env := newNotifyEnv(t)

	env.expectRecipients(recipientRows().
		AddRow("r-1", "Reviewer One", int64(500), "one@example.com", "+490001", true, true).
		AddRow("r-2", "Reviewer Two", int64(501), "", "", false, true),
		4) // chat+email+sms for r-1, chat for r-2

	env.notifier.NotifyReviewReady(context.Background(), reviewApp())

	assert.Equal(t, []int64{500, 501}, env.chat.chatIDs)
	assert.Equal(t, []string{"one@example.com"}, env.email.sent)
	assert.Equal(t, []string{"+490001"}, env.sms.sent)
	assert.Contains(t, env.chat.sent[0], "app-1")
	assert.Contains(t, env.chat.sent[0], "@alice")
}

func TestNotifyReviewReady_DedupedAcrossRetries(t *testing.T) {
	env := newNotifyEnv(t)

	env.expectRecipients(recipientRows().
		AddRow("r-1", "Reviewer One", int64(500), "", "", false, true), 1)
	// Second call never reaches the recipient query.

	env.notifier.NotifyReviewReady(context.Background(), reviewApp())
	env.notifier.NotifyReviewReady(context.Background(), reviewApp())

	assert.Len(t, env.chat.sent, 1)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestNotifyReviewReady_RosterFailureReleasesMark(t *testing.T) {
	env := newNotifyEnv(t)

	// First attempt cannot load the roster; the dedup mark must come back
	// so the retry can fan out.
	env.mock.ExpectQuery(`SELECT id, name, chat_id`).WillReturnError(errors.New("db down"))
	env.expectRecipients(recipientRows().
		AddRow("r-1", "Reviewer One", int64(500), "", "", false, true), 1)

	env.notifier.NotifyReviewReady(context.Background(), reviewApp())
	env.notifier.NotifyReviewReady(context.Background(), reviewApp())

	assert.Len(t, env.chat.sent, 1)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestNotifyReviewReady_SMSOnlyHighPriority(t *testing.T) {
	env := newNotifyEnv(t)

	env.expectRecipients(recipientRows().
		AddRow("r-1", "Low Priority", int64(500), "", "+490001", false, true), 1)

	env.notifier.NotifyReviewReady(context.Background(), reviewApp())

	assert.Empty(t, env.sms.sent)
	assert.Len(t, env.chat.sent, 1)
}

func TestNotifyReviewReady_FailedChannelDoesNotBlockOthers(t *testing.T) {
	env := newNotifyEnv(t)
	env.chat.err = errors.New("gateway down")

	env.expectRecipients(recipientRows().
		AddRow("r-1", "Reviewer One", int64(500), "one@example.com", "", false, true).
		AddRow("r-2", "Reviewer Two", int64(501), "two@example.com", "", false, true),
		4) // failed chat attempts are audited too

	env.notifier.NotifyReviewReady(context.Background(), reviewApp())

	assert.Equal(t, []string{"one@example.com", "two@example.com"}, env.email.sent)
}

// ==========================
// Stall Fan-Out
// ==========================

func TestNotifyStalled_RendersEpisodeDetails(t *testing.T) {
	env := newNotifyEnv(t)

	env.expectRecipients(recipientRows().
		AddRow("r-1", "Reviewer One", int64(500), "", "", false, true), 1)

	stalledAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	env.notifier.NotifyStalled(context.Background(), store.StalledApplication{
		ID:          "app-1",
		UserID:      42,
		Username:    "alice",
		CurrentStep: "city",
		UpdatedAt:   stalledAt,
	}, "Which city are you in?")

	require.Len(t, env.chat.sent, 1)
	assert.Contains(t, env.chat.sent[0], "app-1")
	assert.Contains(t, env.chat.sent[0], "Which city are you in?")
	assert.Contains(t, env.chat.sent[0], "2026-08-01T12:00:00Z")
}

func TestFanOut_NoRecipients(t *testing.T) {
	env := newNotifyEnv(t)

	env.expectRecipients(recipientRows(), 0)

	env.notifier.NotifyStalled(context.Background(), store.StalledApplication{ID: "app-1"}, "step")

	assert.Empty(t, env.chat.sent)
	require.NoError(t, env.mock.ExpectationsWereMet())
}
