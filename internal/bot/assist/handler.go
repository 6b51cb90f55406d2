// internal/bot/assist/handler.go
package assist

import (
	"context"
	"fmt"
	"strings"

	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

const TaskType = "message-assist"

// Handler runs the bilingual assist pipeline on group traffic. Every stage
// degrades rather than fails: a missed translation keeps the original text,
// a missed transcription logs the voice message without a transcript.
type Handler struct {
	config     *Config
	translator Translator
	speech     SpeechProvider
	chat       ChatGateway
	messages   MessageLog
	logger     logger.Logger
}

func NewHandler(config *Config, translator Translator, speech SpeechProvider, chat ChatGateway, messages MessageLog, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		translator: translator,
		speech:     speech,
		chat:       chat,
		messages:   messages,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// translationTarget picks the language to translate into: foreign text goes
// to the primary language, primary-language text goes to the secondary one.
// An empty result means no translation is wanted.
func (h *Handler) translationTarget(detected string) string {
	target := h.config.PrimaryLang
	if detected == h.config.PrimaryLang {
		target = h.config.SecondaryLang
	}
	if target == "" || target == detected {
		return ""
	}
	return target
}

// translate runs the detected text through the translator toward its target
// language. Failures degrade to an empty string, keeping the original text.
func (h *Handler) translate(ctx context.Context, chatID int64, text, detected string) string {
	target := h.translationTarget(detected)
	if target == "" {
		return ""
	}
	translated, err := h.translator.Translate(ctx, text, detected, target)
	if err != nil {
		h.logger.Warn("translation degraded, keeping original", map[string]interface{}{
			"chatId": chatID,
			"lang":   detected,
			"target": target,
			"error":  err.Error(),
		})
		return ""
	}
	return translated
}

// HandleText translates a group text message across the language pair,
// logs it, and optionally replies in-chat.
func (h *Handler) HandleText(ctx context.Context, chatID, userID int64, text string) error {
	detected := DetectLang(text)
	translated := h.translate(ctx, chatID, text, detected)

	msg := &models.ChatMessage{
		ChatID:         chatID,
		UserID:         userID,
		Direction:      models.DirectionInbound,
		Text:           text,
		TranslatedText: translated,
		DetectedLang:   detected,
	}
	if err := h.messages.Insert(ctx, msg); err != nil {
		return err
	}

	if translated != "" && h.config.ReplyTranslated {
		reply := fmt.Sprintf("%s %s", h.config.TranslationPrefix, translated)
		h.reply(ctx, chatID, reply)
	}
	return nil
}

// HandleMedia logs a group attachment by file id, translating its caption
// across the language pair when one is present.
func (h *Handler) HandleMedia(ctx context.Context, chatID, userID int64, fileID, caption string) error {
	detected := ""
	translated := ""
	if caption != "" {
		detected = DetectLang(caption)
		translated = h.translate(ctx, chatID, caption, detected)
	}

	msg := &models.ChatMessage{
		ChatID:         chatID,
		UserID:         userID,
		Direction:      models.DirectionInbound,
		Text:           caption,
		TranslatedText: translated,
		DetectedLang:   detected,
		FileID:         fileID,
	}
	if err := h.messages.Insert(ctx, msg); err != nil {
		return err
	}

	if translated != "" && h.config.ReplyTranslated {
		reply := fmt.Sprintf("%s %s", h.config.TranslationPrefix, translated)
		h.reply(ctx, chatID, reply)
	}
	return nil
}

// HandleVoice downloads a voice note, transcribes it, translates the
// transcript when needed, and posts the result back to the chat.
func (h *Handler) HandleVoice(ctx context.Context, chatID, userID int64, fileID string) error {
	// Transcription takes a while, so show a typing indicator meanwhile.
	if err := h.chat.SendChatAction(ctx, chatID, "typing"); err != nil {
		h.logger.Debug("chat action failed", map[string]interface{}{
			"chatId": chatID,
			"error":  err.Error(),
		})
	}
	transcript := h.FetchTranscript(ctx, chatID, fileID)

	detected := ""
	translated := ""
	if transcript != "" {
		detected = DetectLang(transcript)
		translated = h.translate(ctx, chatID, transcript, detected)
	}

	msg := &models.ChatMessage{
		ChatID:         chatID,
		UserID:         userID,
		Direction:      models.DirectionInbound,
		Transcript:     transcript,
		TranslatedText: translated,
		DetectedLang:   detected,
		FileID:         fileID,
	}
	if err := h.messages.Insert(ctx, msg); err != nil {
		return err
	}

	if transcript == "" {
		return nil
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", h.config.TranscriptPrefix, transcript))
	if translated != "" {
		parts = append(parts, fmt.Sprintf("%s %s", h.config.TranslationPrefix, translated))
	}
	replyText := strings.Join(parts, "\n")
	h.reply(ctx, chatID, replyText)

	if h.config.VoiceReplies && translated != "" {
		audio, err := h.speech.Synthesize(ctx, translated)
		if err != nil {
			h.logger.Warn("voice reply synthesis failed", map[string]interface{}{
				"chatId": chatID,
				"error":  err.Error(),
			})
			return nil
		}
		if err := h.chat.SendVoice(ctx, chatID, audio, ""); err != nil {
			h.logger.Warn("voice reply send failed", map[string]interface{}{
				"chatId": chatID,
				"error":  err.Error(),
			})
		}
	}
	return nil
}

// FetchTranscript resolves, downloads and transcribes a voice file.
// Any failure returns an empty transcript; the message is still logged.
func (h *Handler) FetchTranscript(ctx context.Context, chatID int64, fileID string) string {
	file, err := h.chat.GetFile(ctx, fileID)
	if err != nil {
		h.logger.Warn("voice file resolve failed", map[string]interface{}{
			"chatId": chatID,
			"fileId": fileID,
			"error":  err.Error(),
		})
		return ""
	}

	audio, err := h.chat.DownloadFile(ctx, file)
	if err != nil {
		h.logger.Warn("voice file download failed", map[string]interface{}{
			"chatId": chatID,
			"fileId": fileID,
			"error":  err.Error(),
		})
		return ""
	}

	transcript, err := h.speech.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		h.logger.Warn("transcription skipped", map[string]interface{}{
			"chatId": chatID,
			"fileId": fileID,
			"error":  err.Error(),
		})
		return ""
	}
	return strings.TrimSpace(transcript)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.chat.SendMessage(ctx, chatID, text, nil); err != nil {
		h.logger.Warn("assist reply failed", map[string]interface{}{
			"chatId": chatID,
			"error":  err.Error(),
		})
	}
}
