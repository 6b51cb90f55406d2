// internal/bot/notify/notifier.go
package notify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/telegram"
	"intake-bot/internal/models"
	"intake-bot/internal/store"
)

const TaskType = "escalation-fanout"

// ChatSender delivers direct messages to reviewers.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
}

// EmailSender delivers plain-text email.
type EmailSender interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) error
}

// SMSSender delivers text messages to phone numbers.
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) error
}

// Notifier fans escalations out to the recipient roster. One recipient or
// channel failing never blocks the rest of the batch.
type Notifier struct {
	config     *Config
	recipients *store.RecipientStore
	dedup      *store.DedupStore
	chat       ChatSender
	email      EmailSender
	sms        SMSSender
	logger     logger.Logger
}

func NewNotifier(config *Config, recipients *store.RecipientStore, dedup *store.DedupStore, chat ChatSender, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		config:     config,
		recipients: recipients,
		dedup:      dedup,
		chat:       chat,
		email:      email,
		sms:        sms,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// NotifyReviewReady announces a completed application, at most once per
// application. Failures are logged; the terminal state is already committed
// and must not be affected.
func (n *Notifier) NotifyReviewReady(ctx context.Context, app *models.Application) {
	acquired, err := n.dedup.AcquireMark(ctx, store.ReviewKey(app.ID), n.config.ReviewTTL)
	if err != nil {
		n.logger.Error("review dedup check failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return
	}
	if !acquired {
		n.logger.Info("review notification already sent", map[string]interface{}{
			"applicationId": app.ID,
		})
		return
	}

	values := map[string]string{
		"applicationId": app.ID,
		"username":      displayName(app.Username, app.UserID),
	}
	if err := n.fanOut(ctx, models.NotifyReviewReady, n.config.ReviewSubject, n.config.ReviewBody, n.config.ReviewSMS, values); err != nil {
		// The roster never loaded, so nothing went out. Give the mark back
		// so a later completion event can retry the announcement.
		if relErr := n.dedup.ReleaseMark(ctx, store.ReviewKey(app.ID)); relErr != nil {
			n.logger.Error("review mark release failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         relErr.Error(),
			})
		}
	}
}

// NotifyStalled announces a stall episode. The watchdog owns the per-episode
// dedup mark, so this always fans out.
func (n *Notifier) NotifyStalled(ctx context.Context, app store.StalledApplication, stepLabel string) {
	values := map[string]string{
		"applicationId": app.ID,
		"username":      displayName(app.Username, app.UserID),
		"step":          stepLabel,
		"since":         app.UpdatedAt.UTC().Format(time.RFC3339),
	}
	n.fanOut(ctx, models.NotifyStalled, n.config.StalledSubject, n.config.StalledBody, n.config.StalledSMS, values)
}

// fanOut delivers one escalation to every active recipient. It reports an
// error only when the roster itself could not be loaded; per-recipient
// delivery failures are recorded and absorbed.
func (n *Notifier) fanOut(ctx context.Context, kind, subjectTpl, bodyTpl, smsTpl string, values map[string]string) error {
	recipients, err := n.recipients.ListActive(ctx)
	if err != nil {
		n.logger.Error("failed to load recipients", map[string]interface{}{
			"kind":  kind,
			"error": err.Error(),
		})
		return err
	}
	if len(recipients) == 0 {
		n.logger.Warn("no active recipients for escalation", map[string]interface{}{"kind": kind})
		return nil
	}

	subject := renderTemplate(subjectTpl, values)
	body := renderTemplate(bodyTpl, values)
	sms := renderTemplate(smsTpl, values)

	for _, r := range recipients {
		n.deliverChat(ctx, kind, r, body)

		if n.config.EmailEnabled && n.email != nil && r.Email != "" {
			n.deliverEmail(ctx, kind, r, subject, body)
		}

		if n.config.SMSEnabled && n.sms != nil && r.HighPriority && r.Phone != "" && sms != "" {
			n.deliverSMS(ctx, kind, r, sms)
		}
	}
	return nil
}

func (n *Notifier) deliverChat(ctx context.Context, kind string, r models.Recipient, body string) {
	_, err := n.chat.SendMessage(ctx, r.ChatID, body, nil)
	n.record(ctx, kind, r, models.ChannelChat, err)
}

func (n *Notifier) deliverEmail(ctx context.Context, kind string, r models.Recipient, subject, body string) {
	err := n.email.SendPlainEmail(ctx, n.config.EmailFrom, r.Email, subject, body)
	n.record(ctx, kind, r, models.ChannelEmail, err)
}

func (n *Notifier) deliverSMS(ctx context.Context, kind string, r models.Recipient, message string) {
	err := n.sms.SendSMS(ctx, r.Phone, message)
	n.record(ctx, kind, r, models.ChannelSMS, err)
}

func (n *Notifier) record(ctx context.Context, kind string, r models.Recipient, channel string, sendErr error) {
	status := "sent"
	if sendErr != nil {
		status = "failed"
		serr := stderrors.NewNotificationSendFailedError(channel, sendErr)
		metrics.NotificationsFailed.WithLabelValues(channel, string(serr.Code)).Inc()
		n.logger.Error("notification delivery failed", map[string]interface{}{
			"kind":        kind,
			"recipientId": r.ID,
			"channel":     channel,
			"error":       serr.Error(),
		})
	} else {
		metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}

	audit := &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: r.ID,
		Type:        kind,
		Channel:     channel,
		Status:      status,
		SentAt:      time.Now().UTC(),
	}
	if err := n.recipients.RecordNotification(ctx, audit); err != nil {
		n.logger.Warn("notification audit write failed", map[string]interface{}{
			"recipientId": r.ID,
			"channel":     channel,
			"error":       err.Error(),
		})
	}
}

func displayName(username string, userID int64) string {
	if username != "" {
		return "@" + username
	}
	return "user " + strconv.FormatInt(userID, 10)
}

func renderTemplate(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
