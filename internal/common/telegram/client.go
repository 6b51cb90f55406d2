// internal/common/telegram/client.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"intake-bot/internal/common/config"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
)

// Client talks to the bot gateway HTTP API.
type Client struct {
	baseURL    string
	token      string
	maxFileLen int64
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(cfg config.TelegramConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.BotToken,
		maxFileLen: cfg.MaxFileBytes,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.SendTimeout) * time.Millisecond,
		},
		log: log,
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) fileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
}

// call posts a JSON body to a gateway method and decodes the envelope.
// One bounded retry on transport errors; API-level rejections are final.
func (c *Client) call(ctx context.Context, method string, body interface{}, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var resp *http.Response
	var lastErr error
	attempts := 1 + stderrors.GetRetryCount(stderrors.ErrCodeChatSendFailed)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		c.log.Warn("gateway call failed, retrying", map[string]interface{}{
			"method":  method,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}
	if lastErr != nil {
		return stderrors.NewChatSendFailedError(method, lastErr)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return stderrors.NewChatSendFailedError(method,
			fmt.Errorf("gateway error %d: %s", envelope.ErrorCode, envelope.Description))
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage delivers a text message, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{
		CallbackQueryID: callbackID,
		Text:            text,
	}, nil)
}

// SendChatAction shows a transient "typing" style indicator.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", sendChatActionRequest{ChatID: chatID, Action: action}, nil)
}

// GetFile resolves a file id into a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &file)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadFile fetches file content, enforcing the configured size cap.
func (c *Client) DownloadFile(ctx context.Context, file *File) ([]byte, error) {
	if c.maxFileLen > 0 && file.FileSize > c.maxFileLen {
		return nil, stderrors.NewChatFileFetchFailedError(file.FileID,
			fmt.Errorf("file size %d exceeds cap %d", file.FileSize, c.maxFileLen))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, stderrors.NewChatFileFetchFailedError(file.FileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, stderrors.NewChatFileFetchFailedError(file.FileID,
			fmt.Errorf("download returned status %d", resp.StatusCode))
	}

	limit := c.maxFileLen
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, stderrors.NewChatFileFetchFailedError(file.FileID, err)
	}
	if int64(len(data)) > limit {
		return nil, stderrors.NewChatFileFetchFailedError(file.FileID,
			fmt.Errorf("file content exceeds cap %d", limit))
	}
	return data, nil
}

// SendVoice uploads synthesized audio as a voice reply.
func (c *Client) SendVoice(ctx context.Context, chatID int64, audio []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("voice", "reply.ogg")
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("write voice content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendVoice"), &buf)
	if err != nil {
		return fmt.Errorf("build sendVoice request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stderrors.NewChatSendFailedError("sendVoice", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read sendVoice response: %w", err)
	}
	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode sendVoice response: %w", err)
	}
	if !envelope.OK {
		return stderrors.NewChatSendFailedError("sendVoice",
			fmt.Errorf("gateway error %d: %s", envelope.ErrorCode, envelope.Description))
	}
	return nil
}

// GetMe verifies the token against the gateway at startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	err := c.call(ctx, "getMe", map[string]string{}, &me)
	if err != nil {
		return nil, err
	}
	return &me, nil
}
