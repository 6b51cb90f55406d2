// internal/models/message.go
package models

import "time"

// Message directions relative to the bot.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ChatMessage is a logged conversation entry, persisted to the database and
// mirrored into the search index on a best-effort basis.
type ChatMessage struct {
	ID             string    `json:"id"`
	ChatID         int64     `json:"chatId"`
	UserID         int64     `json:"userId"`
	Direction      string    `json:"direction"`
	Text           string    `json:"text,omitempty"`
	TranslatedText string    `json:"translatedText,omitempty"`
	Transcript     string    `json:"transcript,omitempty"`
	DetectedLang   string    `json:"detectedLang,omitempty"`
	FileID         string    `json:"fileId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
