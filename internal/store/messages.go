// internal/store/messages.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"intake-bot/internal/common/database"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

// MessageStore logs conversation traffic. The database row is authoritative;
// the search index copy is best effort and never fails the caller.
type MessageStore struct {
	db  *database.PostgresClient
	es  *database.ElasticsearchClient
	log logger.Logger
}

func NewMessageStore(db *database.PostgresClient, es *database.ElasticsearchClient, log logger.Logger) *MessageStore {
	return &MessageStore{db: db, es: es, log: log}
}

// Insert persists a chat message and mirrors it into the search index.
func (s *MessageStore) Insert(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_messages (id, chat_id, user_id, direction, text, translated_text, transcript, detected_lang, file_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.DB.ExecContext(ctx, query,
		msg.ID, msg.ChatID, msg.UserID, msg.Direction,
		msg.Text, msg.TranslatedText, msg.Transcript, msg.DetectedLang, msg.FileID, msg.CreatedAt)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("insert chat message", err)
	}

	s.indexMessage(ctx, msg)
	return nil
}

func (s *MessageStore) indexMessage(ctx context.Context, msg *models.ChatMessage) {
	if s.es == nil || s.es.Index == "" {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("failed to encode message for indexing", map[string]interface{}{
			"messageId": msg.ID,
			"error":     err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      s.es.Index,
		DocumentID: msg.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		s.log.Warn("message index request failed", map[string]interface{}{
			"messageId": msg.ID,
			"error":     err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		s.log.Warn("message index rejected", map[string]interface{}{
			"messageId": msg.ID,
			"status":    res.Status(),
		})
	}
}
