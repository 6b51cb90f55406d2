// internal/models/application.go
package models

import "time"

// Application status values.
const (
	StatusInProgress    = "in_progress"
	StatusPendingReview = "pending_review"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
)

// Application is one user's questionnaire progress.
type Application struct {
	ID               string                `json:"id"`
	UserID           int64                 `json:"userId"`
	ChatID           int64                 `json:"chatId"`
	Username         string                `json:"username,omitempty"`
	Language         string                `json:"language,omitempty"`
	CurrentStep      string                `json:"currentStep"`
	CollectedFields  map[string]FieldValue `json:"collectedFields"`
	PendingSelection *PendingSelection     `json:"pendingSelection,omitempty"`
	Status           string                `json:"status"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// FieldValue is a collected answer. Exactly one of the value fields is set,
// discriminated by Kind.
type FieldValue struct {
	Kind   string     `json:"kind"` // text, choice, list, media
	Text   string     `json:"text,omitempty"`
	Choice string     `json:"choice,omitempty"`
	List   []string   `json:"list,omitempty"`
	Media  []MediaRef `json:"media,omitempty"`
}

// MediaRef points at an uploaded attachment on the chat platform.
type MediaRef struct {
	FileID   string `json:"fileId"`
	Kind     string `json:"kind"` // photo, document, voice
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// PendingSelection accumulates partial input for multi-choice and media steps
// before the user confirms. It never advances UpdatedAt on its own.
type PendingSelection struct {
	StepID string     `json:"stepId"`
	Tokens []string   `json:"tokens,omitempty"`
	Media  []MediaRef `json:"media,omitempty"`
}

// IsTerminal reports whether no further answers are accepted.
func (a *Application) IsTerminal() bool {
	return a.Status != StatusInProgress
}

// HasAnswer reports whether a step already has a collected value.
func (a *Application) HasAnswer(stepID string) bool {
	_, ok := a.CollectedFields[stepID]
	return ok
}
