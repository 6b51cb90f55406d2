// internal/bot/assist/models.go
package assist

import (
	"context"

	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
)

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// SpeechProvider transcribes and synthesizes voice audio.
type SpeechProvider interface {
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ChatGateway is the slice of the gateway client the assist pipeline needs.
type ChatGateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	SendVoice(ctx context.Context, chatID int64, audio []byte, caption string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, file *telegram.File) ([]byte, error)
}

// MessageLog persists processed conversation entries.
type MessageLog interface {
	Insert(ctx context.Context, msg *models.ChatMessage) error
}
