// internal/bot/flow/models.go
package flow

import (
	"context"

	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
)

// ActionKind is the closed set of button actions the flow understands.
type ActionKind string

const (
	ActionAnswer  ActionKind = "answer"
	ActionConfirm ActionKind = "confirm"
	ActionDone    ActionKind = "done"
	ActionStart   ActionKind = "start"
)

// Action is a parsed callback payload.
type Action struct {
	Kind       ActionKind
	StepID     string
	Token      string
	CallbackID string
}

// ChatSender is the slice of the gateway client the flow needs.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// ReviewNotifier fans out the review-ready escalation after the terminal
// transition commits.
type ReviewNotifier interface {
	NotifyReviewReady(ctx context.Context, app *models.Application)
}
