// internal/bot/dispatch/handler_test.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/bot/flow"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
)

// ==========================
// Mocks
// ==========================

type mockFlow struct {
	started []int64
	texts   []string
	buttons []flow.Action
	media   []models.MediaRef
}

func (m *mockFlow) Start(ctx context.Context, userID, chatID int64, username, language string) error {
	m.started = append(m.started, userID)
	return nil
}

func (m *mockFlow) HandleText(ctx context.Context, app *models.Application, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockFlow) HandleButton(ctx context.Context, app *models.Application, action flow.Action) error {
	m.buttons = append(m.buttons, action)
	return nil
}

func (m *mockFlow) HandleMedia(ctx context.Context, app *models.Application, media models.MediaRef) error {
	m.media = append(m.media, media)
	return nil
}

type loggedMedia struct {
	fileID  string
	caption string
}

type mockAssist struct {
	texts      []string
	voices     []string
	media      []loggedMedia
	transcript string
}

func (m *mockAssist) HandleText(ctx context.Context, chatID, userID int64, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockAssist) HandleVoice(ctx context.Context, chatID, userID int64, fileID string) error {
	m.voices = append(m.voices, fileID)
	return nil
}

func (m *mockAssist) HandleMedia(ctx context.Context, chatID, userID int64, fileID, caption string) error {
	m.media = append(m.media, loggedMedia{fileID: fileID, caption: caption})
	return nil
}

func (m *mockAssist) FetchTranscript(ctx context.Context, chatID int64, fileID string) string {
	return m.transcript
}

type mockLoader struct {
	apps map[int64]*models.Application
}

func (m *mockLoader) GetByUserID(ctx context.Context, userID int64) (*models.Application, error) {
	if app, ok := m.apps[userID]; ok {
		return app, nil
	}
	return nil, stderrors.NewApplicationNotFoundError(userID)
}

type mockSender struct {
	sent []string
}

func (m *mockSender) SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	m.sent = append(m.sent, text)
	return &telegram.Message{}, nil
}

type mockDeduper struct {
	seen map[int64]bool
}

func (m *mockDeduper) SeenUpdate(ctx context.Context, updateID int64, ttl time.Duration) (bool, error) {
	if m.seen == nil {
		m.seen = map[int64]bool{}
	}
	was := m.seen[updateID]
	m.seen[updateID] = true
	return was, nil
}

type dispatchEnv struct {
	handler *Handler
	flow    *mockFlow
	assist  *mockAssist
	loader  *mockLoader
	sender  *mockSender
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	cfg := DefaultConfig()
	cfg.WebhookSecret = "hunter2"

	env := &dispatchEnv{
		flow:   &mockFlow{},
		assist: &mockAssist{},
		loader: &mockLoader{apps: map[int64]*models.Application{}},
		sender: &mockSender{},
	}
	env.handler = NewHandler(cfg, env.flow, env.assist, env.loader, env.sender, &mockDeduper{}, nil, logger.NewTestLogger(t))
	return env
}

func privateMessage(userID int64, text string) *telegram.Update {
	return &telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From: &telegram.User{ID: userID, Username: "alice"},
			Chat: telegram.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func existingApp(userID int64) *models.Application {
	return &models.Application{
		ID:              "app-1",
		UserID:          userID,
		ChatID:          userID,
		CurrentStep:     "city",
		CollectedFields: map[string]models.FieldValue{},
		Status:          models.StatusInProgress,
	}
}

// ==========================
// Classification
// ==========================

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		update *telegram.Update
		want   EventKind
	}{
		{
			name:   "private text",
			update: privateMessage(42, "hello"),
			want:   EventPrivateText,
		},
		{
			name: "private callback",
			update: &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
				From:    telegram.User{ID: 42},
				Message: &telegram.Message{Chat: telegram.Chat{ID: 42, Type: "private"}},
				Data:    "ans:city:berlin",
			}},
			want: EventPrivateCallback,
		},
		{
			name: "group text",
			update: &telegram.Update{Message: &telegram.Message{
				From: &telegram.User{ID: 42},
				Chat: telegram.Chat{ID: -100, Type: "supergroup"},
				Text: "hello",
			}},
			want: EventGroupText,
		},
		{
			name: "group voice",
			update: &telegram.Update{Message: &telegram.Message{
				From:  &telegram.User{ID: 42},
				Chat:  telegram.Chat{ID: -100, Type: "group"},
				Voice: &telegram.Voice{FileID: "v-1"},
			}},
			want: EventGroupVoice,
		},
		{
			name: "private photo",
			update: &telegram.Update{Message: &telegram.Message{
				From:  &telegram.User{ID: 42},
				Chat:  telegram.Chat{ID: 42, Type: "private"},
				Photo: []telegram.PhotoSize{{FileID: "p-1"}},
			}},
			want: EventPrivateMedia,
		},
		{
			name: "bot added to group",
			update: &telegram.Update{MyChatMember: &telegram.ChatMemberUpd{
				Chat:          telegram.Chat{ID: -100, Type: "group"},
				OldChatMember: telegram.ChatMember{Status: "left"},
				NewChatMember: telegram.ChatMember{Status: "member"},
			}},
			want: EventBotAdded,
		},
		{
			name: "bot message ignored",
			update: &telegram.Update{Message: &telegram.Message{
				From: &telegram.User{ID: 9, IsBot: true},
				Chat: telegram.Chat{ID: 42, Type: "private"},
				Text: "echo",
			}},
			want: EventIgnored,
		},
		{
			name: "group photo",
			update: &telegram.Update{Message: &telegram.Message{
				From:  &telegram.User{ID: 42},
				Chat:  telegram.Chat{ID: -100, Type: "group"},
				Photo: []telegram.PhotoSize{{FileID: "p-1"}},
			}},
			want: EventGroupMedia,
		},
		{
			name: "group document",
			update: &telegram.Update{Message: &telegram.Message{
				From:     &telegram.User{ID: 42},
				Chat:     telegram.Chat{ID: -100, Type: "group"},
				Document: &telegram.Document{FileID: "d-1", FileName: "cv.pdf"},
			}},
			want: EventGroupMedia,
		},
		{
			name:   "empty update ignored",
			update: &telegram.Update{UpdateID: 5},
			want:   EventIgnored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.update))
		})
	}
}

// ==========================
// Routing
// ==========================

func TestProcess_FirstContactCreatesApplication(t *testing.T) {
	env := newDispatchEnv(t)

	env.handler.Process(context.Background(), privateMessage(42, "hi there"))

	assert.Equal(t, []int64{42}, env.flow.started)
	assert.Empty(t, env.flow.texts)
}

func TestProcess_ExistingApplicationGetsText(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)

	env.handler.Process(context.Background(), privateMessage(42, "Berlin"))

	assert.Equal(t, []string{"Berlin"}, env.flow.texts)
	assert.Empty(t, env.flow.started)
}

func TestProcess_StartCommand(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)

	env.handler.Process(context.Background(), privateMessage(42, "/start"))

	assert.Equal(t, []int64{42}, env.flow.started)
}

func TestProcess_DuplicateUpdateDropped(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)

	update := privateMessage(42, "Berlin")
	env.handler.Process(context.Background(), update)
	env.handler.Process(context.Background(), update)

	assert.Len(t, env.flow.texts, 1)
}

func TestProcess_CallbackParsedAndRouted(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			From:    telegram.User{ID: 42},
			Message: &telegram.Message{Chat: telegram.Chat{ID: 42, Type: "private"}},
			Data:    "ans:city:berlin",
		},
	})

	require.Len(t, env.flow.buttons, 1)
	assert.Equal(t, flow.ActionAnswer, env.flow.buttons[0].Kind)
	assert.Equal(t, "city", env.flow.buttons[0].StepID)
	assert.Equal(t, "berlin", env.flow.buttons[0].Token)
	assert.Equal(t, "cb-1", env.flow.buttons[0].CallbackID)
}

func TestProcess_MalformedCallbackDropped(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 3,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			From:    telegram.User{ID: 42},
			Message: &telegram.Message{Chat: telegram.Chat{ID: 42, Type: "private"}},
			Data:    "garbage",
		},
	})

	assert.Empty(t, env.flow.buttons)
}

func TestProcess_GroupTrafficGoesToAssist(t *testing.T) {
	env := newDispatchEnv(t)

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 4,
		Message: &telegram.Message{
			From: &telegram.User{ID: 42},
			Chat: telegram.Chat{ID: -100, Type: "supergroup"},
			Text: "hello all",
		},
	})
	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 5,
		Message: &telegram.Message{
			From:  &telegram.User{ID: 42},
			Chat:  telegram.Chat{ID: -100, Type: "supergroup"},
			Voice: &telegram.Voice{FileID: "v-1"},
		},
	})

	assert.Equal(t, []string{"hello all"}, env.assist.texts)
	assert.Equal(t, []string{"v-1"}, env.assist.voices)
}

func TestProcess_GroupMediaLoggedViaAssist(t *testing.T) {
	env := newDispatchEnv(t)

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 8,
		Message: &telegram.Message{
			From:    &telegram.User{ID: 42},
			Chat:    telegram.Chat{ID: -100, Type: "supergroup"},
			Photo:   []telegram.PhotoSize{{FileID: "p-small"}, {FileID: "p-big"}},
			Caption: "meetup photo",
		},
	})

	require.Len(t, env.assist.media, 1)
	assert.Equal(t, "p-big", env.assist.media[0].fileID)
	assert.Equal(t, "meetup photo", env.assist.media[0].caption)
	assert.Empty(t, env.flow.media)
}

func TestProcess_PrivateVoiceBecomesTextAnswer(t *testing.T) {
	env := newDispatchEnv(t)
	env.loader.apps[42] = existingApp(42)
	env.assist.transcript = "Berlin"

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 6,
		Message: &telegram.Message{
			From:  &telegram.User{ID: 42},
			Chat:  telegram.Chat{ID: 42, Type: "private"},
			Voice: &telegram.Voice{FileID: "v-1"},
		},
	})

	assert.Equal(t, []string{"Berlin"}, env.flow.texts)
}

func TestProcess_BotAddedSendsGreeting(t *testing.T) {
	env := newDispatchEnv(t)

	env.handler.Process(context.Background(), &telegram.Update{
		UpdateID: 7,
		MyChatMember: &telegram.ChatMemberUpd{
			Chat:          telegram.Chat{ID: -100, Type: "group"},
			OldChatMember: telegram.ChatMember{Status: "left"},
			NewChatMember: telegram.ChatMember{Status: "member"},
		},
	})

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, DefaultConfig().GroupGreeting, env.sender.sent[0])
}

// ==========================
// Webhook
// ==========================

func TestServeWebhook_SecretMismatch(t *testing.T) {
	env := newDispatchEnv(t)

	body, _ := json.Marshal(privateMessage(42, "hi"))
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	env.handler.ServeWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.flow.started)
}

func TestServeWebhook_AlwaysOKForValidSecret(t *testing.T) {
	env := newDispatchEnv(t)

	body, _ := json.Marshal(privateMessage(42, "hi"))
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hunter2")
	rec := httptest.NewRecorder()

	env.handler.ServeWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{42}, env.flow.started)
}

func TestServeWebhook_UndecodableBodyStillOK(t *testing.T) {
	env := newDispatchEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hunter2")
	rec := httptest.NewRecorder()

	env.handler.ServeWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
