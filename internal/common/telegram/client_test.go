// internal/common/telegram/client_test.go
package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-bot/internal/common/config"
	stderrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.TelegramConfig{
		BotToken:     "test-token",
		BaseURL:      srv.URL,
		SendTimeout:  2000,
		MaxFileBytes: 1024,
	}, logger.NewTestLogger(t))
	return client, srv
}

func writeEnvelope(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":     true,
		"result": json.RawMessage(raw),
	})
}

func TestSendMessage_Success(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(w, Message{MessageID: 7, Text: gotBody.Text})
	}))

	msg, err := client.SendMessage(context.Background(), 42, "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, int64(42), gotBody.ChatID)
	assert.Equal(t, int64(7), msg.MessageID)
	assert.Equal(t, "hello", msg.Text)
}

func TestSendMessage_APIRejectionIsFinal(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: chat not found",
		})
	}))

	_, err := client.SendMessage(context.Background(), 42, "hello", nil)
	require.Error(t, err)

	assert.Equal(t, 1, calls, "API-level rejections must not be retried")
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChatSendFailed))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestCall_RetriesOnceOnTransportError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Drop the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		writeEnvelope(w, Message{MessageID: 1})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.TelegramConfig{
		BotToken:    "test-token",
		BaseURL:     srv.URL,
		SendTimeout: 2000,
	}, logger.NewTestLogger(t))

	msg, err := client.SendMessage(context.Background(), 42, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), msg.MessageID)
}

func TestGetFile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getFile", r.URL.Path)
		writeEnvelope(w, File{FileID: "f-1", FilePath: "voice/f-1.ogg", FileSize: 512})
	}))

	file, err := client.GetFile(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "voice/f-1.ogg", file.FilePath)
}

func TestDownloadFile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/bottest-token/voice/f-1.ogg", r.URL.Path)
		w.Write([]byte("audio-bytes"))
	}))

	data, err := client.DownloadFile(context.Background(), &File{FileID: "f-1", FilePath: "voice/f-1.ogg", FileSize: 11})
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestDownloadFile_RejectsDeclaredOversize(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized file must be rejected before download")
	}))

	_, err := client.DownloadFile(context.Background(), &File{FileID: "f-1", FilePath: "x", FileSize: 4096})
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChatFileFetchFailed))
}

func TestDownloadFile_RejectsOversizeContent(t *testing.T) {
	// Declared size fits, actual body does not.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 2048)))
	}))

	_, err := client.DownloadFile(context.Background(), &File{FileID: "f-1", FilePath: "x", FileSize: 100})
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChatFileFetchFailed))
}

func TestAnswerCallbackQuery(t *testing.T) {
	var gotBody answerCallbackRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": true})
	}))

	err := client.AnswerCallbackQuery(context.Background(), "cb-1", "done")
	require.NoError(t, err)
	assert.Equal(t, "cb-1", gotBody.CallbackQueryID)
	assert.Equal(t, "done", gotBody.Text)
}
