// internal/bot/dispatch/models.go
package dispatch

import (
	"context"
	"time"

	"intake-bot/internal/bot/flow"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
)

// EventKind is the closed classification of incoming updates.
type EventKind string

const (
	EventPrivateText     EventKind = "private_text"
	EventPrivateCallback EventKind = "private_callback"
	EventPrivateMedia    EventKind = "private_media"
	EventPrivateVoice    EventKind = "private_voice"
	EventGroupText       EventKind = "group_text"
	EventGroupVoice      EventKind = "group_voice"
	EventGroupMedia      EventKind = "group_media"
	EventBotAdded        EventKind = "bot_added"
	EventIgnored         EventKind = "ignored"
)

// FlowHandler drives the private questionnaire.
type FlowHandler interface {
	Start(ctx context.Context, userID, chatID int64, username, language string) error
	HandleText(ctx context.Context, app *models.Application, text string) error
	HandleButton(ctx context.Context, app *models.Application, action flow.Action) error
	HandleMedia(ctx context.Context, app *models.Application, media models.MediaRef) error
}

// AssistHandler runs the bilingual group pipeline.
type AssistHandler interface {
	HandleText(ctx context.Context, chatID, userID int64, text string) error
	HandleVoice(ctx context.Context, chatID, userID int64, fileID string) error
	HandleMedia(ctx context.Context, chatID, userID int64, fileID, caption string) error
	FetchTranscript(ctx context.Context, chatID int64, fileID string) string
}

// ApplicationLoader reads questionnaire state for routing.
type ApplicationLoader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Application, error)
}

// ChatSender posts the group greeting.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
}

// EventDeduper filters redelivered updates.
type EventDeduper interface {
	SeenUpdate(ctx context.Context, updateID int64, ttl time.Duration) (bool, error)
}
