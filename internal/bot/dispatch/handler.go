// internal/bot/dispatch/handler.go
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"intake-bot/internal/bot/flow"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
)

const TaskType = "event-dispatch"

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler receives raw gateway updates, filters duplicates, classifies each
// one and routes it. The webhook always answers 200: the gateway retries on
// anything else, and retries are exactly what the dedup layer is for.
type Handler struct {
	config *Config
	flow   FlowHandler
	assist AssistHandler
	apps   ApplicationLoader
	chat   ChatSender
	dedup  EventDeduper
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, flowH FlowHandler, assistH AssistHandler, apps ApplicationLoader, chat ChatSender, dedup EventDeduper, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		flow:   flowH,
		assist: assistH,
		apps:   apps,
		chat:   chat,
		dedup:  dedup,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// ServeWebhook is the gateway-facing HTTP entry point.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.config.WebhookSecret != "" && r.Header.Get(secretHeader) != h.config.WebhookSecret {
		h.logger.Warn("webhook secret mismatch", map[string]interface{}{
			"remoteAddr": r.RemoteAddr,
		})
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("undecodable update dropped", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusOK)
		return
	}

	h.Process(r.Context(), &update)
	w.WriteHeader(http.StatusOK)
}

// Process handles one update end to end. Errors are logged and swallowed;
// nothing here may bubble back into the webhook response.
func (h *Handler) Process(ctx context.Context, update *telegram.Update) {
	seen, err := h.dedup.SeenUpdate(ctx, update.UpdateID, h.config.EventDedupTTL)
	if err != nil {
		h.logger.Error("event dedup check failed, processing anyway", map[string]interface{}{
			"updateId": update.UpdateID,
			"error":    err.Error(),
		})
	}
	if seen {
		metrics.DuplicateUpdates.Inc()
		h.logger.Info("duplicate update dropped", map[string]interface{}{
			"updateId": update.UpdateID,
		})
		return
	}

	kind := Classify(update)
	if kind == EventIgnored {
		return
	}

	started := time.Now()
	err = h.route(ctx, kind, update)
	elapsed := time.Since(started)

	metrics.EventDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		code := string(stderrors.CodeOf(err))
		if code == "" {
			code = "INTERNAL"
		}
		metrics.EventsFailed.WithLabelValues(string(kind), code).Inc()
		h.logger.Error("event processing failed", map[string]interface{}{
			"updateId":  update.UpdateID,
			"eventKind": string(kind),
			"category":  stderrors.GetErrorCategory(stderrors.CodeOf(err)),
			"retryable": stderrors.IsRetryableErrorCode(stderrors.CodeOf(err)),
			"error":     err.Error(),
		})
	} else {
		metrics.EventsProcessed.WithLabelValues(string(kind)).Inc()
	}
	if h.obs != nil {
		h.obs.RecordEventProcessed(ctx, status)
		h.obs.RecordEventDuration(ctx, elapsed, status)
	}
}

// Classify maps an update onto the event kind enum.
func Classify(update *telegram.Update) EventKind {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		if cb.Message != nil && cb.Message.Chat.Type == "private" {
			return EventPrivateCallback
		}
		return EventIgnored
	}

	if update.MyChatMember != nil {
		m := update.MyChatMember
		joined := m.NewChatMember.Status == "member" || m.NewChatMember.Status == "administrator"
		wasOut := m.OldChatMember.Status == "left" || m.OldChatMember.Status == "kicked"
		if joined && wasOut && m.Chat.Type != "private" {
			return EventBotAdded
		}
		return EventIgnored
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return EventIgnored
	}

	private := msg.Chat.Type == "private"
	switch {
	case msg.Voice != nil || msg.Audio != nil:
		if private {
			return EventPrivateVoice
		}
		return EventGroupVoice
	case len(msg.Photo) > 0 || msg.Document != nil:
		if private {
			return EventPrivateMedia
		}
		return EventGroupMedia
	case msg.Text != "":
		if private {
			return EventPrivateText
		}
		return EventGroupText
	}
	return EventIgnored
}

func (h *Handler) route(ctx context.Context, kind EventKind, update *telegram.Update) error {
	switch kind {
	case EventPrivateText:
		return h.routePrivateText(ctx, update.Message)
	case EventPrivateCallback:
		return h.routeCallback(ctx, update.CallbackQuery)
	case EventPrivateMedia:
		return h.routeMedia(ctx, update.Message)
	case EventPrivateVoice:
		return h.routePrivateVoice(ctx, update.Message)
	case EventGroupText:
		return h.assist.HandleText(ctx, update.Message.Chat.ID, update.Message.From.ID, update.Message.Text)
	case EventGroupVoice:
		return h.assist.HandleVoice(ctx, update.Message.Chat.ID, update.Message.From.ID, voiceFileID(update.Message))
	case EventGroupMedia:
		return h.routeGroupMedia(ctx, update.Message)
	case EventBotAdded:
		_, err := h.chat.SendMessage(ctx, update.MyChatMember.Chat.ID, h.config.GroupGreeting, nil)
		return err
	}
	return nil
}

func (h *Handler) routePrivateText(ctx context.Context, msg *telegram.Message) error {
	if msg.Text == "/start" {
		return h.flow.Start(ctx, msg.From.ID, msg.Chat.ID, msg.From.Username, msg.From.LanguageCode)
	}

	app, err := h.loadApplication(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if app == nil {
		// First contact: the creating event seeds the questionnaire.
		return h.flow.Start(ctx, msg.From.ID, msg.Chat.ID, msg.From.Username, msg.From.LanguageCode)
	}
	return h.flow.HandleText(ctx, app, msg.Text)
}

func (h *Handler) routeCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	action, ok := flow.ParseAction(cb.Data)
	if !ok {
		h.logger.Warn("malformed callback payload dropped", map[string]interface{}{
			"data": cb.Data,
		})
		return nil
	}
	action.CallbackID = cb.ID

	app, err := h.loadApplication(ctx, cb.From.ID)
	if err != nil {
		return err
	}
	if app == nil {
		return h.flow.Start(ctx, cb.From.ID, cb.Message.Chat.ID, cb.From.Username, cb.From.LanguageCode)
	}
	return h.flow.HandleButton(ctx, app, action)
}

func (h *Handler) routeMedia(ctx context.Context, msg *telegram.Message) error {
	app, err := h.loadApplication(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if app == nil {
		return h.flow.Start(ctx, msg.From.ID, msg.Chat.ID, msg.From.Username, msg.From.LanguageCode)
	}

	media := mediaRef(msg)
	if media == nil {
		return nil
	}
	return h.flow.HandleMedia(ctx, app, *media)
}

func (h *Handler) routeGroupMedia(ctx context.Context, msg *telegram.Message) error {
	media := mediaRef(msg)
	if media == nil {
		return nil
	}
	return h.assist.HandleMedia(ctx, msg.Chat.ID, msg.From.ID, media.FileID, msg.Caption)
}

// routePrivateVoice turns a private voice note into a text answer when it
// transcribes cleanly, and stays silent otherwise.
func (h *Handler) routePrivateVoice(ctx context.Context, msg *telegram.Message) error {
	app, err := h.loadApplication(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if app == nil {
		return h.flow.Start(ctx, msg.From.ID, msg.Chat.ID, msg.From.Username, msg.From.LanguageCode)
	}

	transcript := h.assist.FetchTranscript(ctx, msg.Chat.ID, voiceFileID(msg))
	if transcript == "" {
		h.logger.Info("private voice without transcript skipped", map[string]interface{}{
			"chatId": msg.Chat.ID,
		})
		return nil
	}
	return h.flow.HandleText(ctx, app, transcript)
}

// loadApplication returns nil without error for first-time users.
func (h *Handler) loadApplication(ctx context.Context, userID int64) (*models.Application, error) {
	app, err := h.apps.GetByUserID(ctx, userID)
	if err != nil {
		if stderrors.IsCode(err, stderrors.ErrCodeApplicationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return app, nil
}

func voiceFileID(msg *telegram.Message) string {
	if msg.Voice != nil {
		return msg.Voice.FileID
	}
	if msg.Audio != nil {
		return msg.Audio.FileID
	}
	return ""
}

// mediaRef picks the attachment out of a message. For photos that is the
// largest rendition, which the gateway lists last.
func mediaRef(msg *telegram.Message) *models.MediaRef {
	if msg.Document != nil {
		return &models.MediaRef{
			FileID:   msg.Document.FileID,
			Kind:     "document",
			FileName: msg.Document.FileName,
			FileSize: msg.Document.FileSize,
		}
	}
	if len(msg.Photo) > 0 {
		p := msg.Photo[len(msg.Photo)-1]
		return &models.MediaRef{
			FileID:   p.FileID,
			Kind:     "photo",
			FileSize: p.FileSize,
		}
	}
	return nil
}
