// internal/common/speech/client.go
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"intake-bot/internal/common/config"
	stderrors "intake-bot/internal/common/errors"
	httpclient "intake-bot/internal/common/http"
	"intake-bot/internal/common/logger"
)

// Client calls the speech provider for transcription and synthesis.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	timeout    time.Duration
	httpClient *httpclient.Client
	log        logger.Logger
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type synthesisRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Voice  string `json:"voice"`
	Format string `json:"response_format"`
}

func NewClient(cfg config.SpeechConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		voice:      cfg.Voice,
		timeout:    timeout,
		httpClient: httpclient.NewClient(timeout),
		log:        log,
	}
}

// Transcribe converts voice audio into text. Deadline overruns surface as a
// timeout error so callers can skip the transcript instead of failing.
func (c *Client) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio content: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return "", stderrors.NewTranscriptionTimeoutError()
		}
		return "", stderrors.NewTranscriptionFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", stderrors.NewTranscriptionFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", stderrors.NewTranscriptionFailedError(
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", stderrors.NewTranscriptionFailedError(err)
	}
	return out.Text, nil
}

// Synthesize renders text into voice audio for spoken replies.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(synthesisRequest{
		Model:  c.model,
		Input:  text,
		Voice:  c.voice,
		Format: "opus",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, stderrors.NewSynthesisFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, stderrors.NewSynthesisFailedError(
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stderrors.NewSynthesisFailedError(err)
	}
	return audio, nil
}
