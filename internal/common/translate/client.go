// internal/common/translate/client.go
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"intake-bot/internal/common/config"
	stderrors "intake-bot/internal/common/errors"
	httpclient "intake-bot/internal/common/http"
	"intake-bot/internal/common/logger"
)

// Client calls the machine translation provider.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *httpclient.Client
	log        logger.Logger
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func NewClient(cfg config.TranslateConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: httpclient.NewClient(timeout),
		log:        log,
	}
}

// Translate converts text between languages within the configured deadline.
// Returns a timeout error distinct from provider failures so callers can degrade.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return "", stderrors.NewTranslationTimeoutError()
		}
		return "", stderrors.NewTranslationFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", stderrors.NewTranslationFailedError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", stderrors.NewTranslationFailedError(
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", stderrors.NewTranslationFailedError(err)
	}
	if out.TranslatedText == "" {
		return "", stderrors.NewTranslationFailedError(errors.New("empty translation result"))
	}
	return out.TranslatedText, nil
}
