package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramClient_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	defer srv.Close()

	c := NewTelegramClient("token", time.Second)
	c.base = srv.URL + "/bottoken"

	require.NoError(t, c.SendMessage(context.Background(), 42, "<b>hi</b>"))
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegramClient_SendMessageAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	c := NewTelegramClient("token", time.Second)
	c.base = srv.URL + "/bottoken"

	err := c.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramClient_GetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken/getUpdates", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 1001,
					"message": map[string]any{
						"text": "/health",
						"from": map[string]any{"id": 42},
						"chat": map[string]any{"id": 100},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewTelegramClient("token", time.Second)
	c.base = srv.URL + "/bottoken"

	updates, err := c.GetUpdates(context.Background(), 1000, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(1001), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/health", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.From.ID)
	assert.Equal(t, int64(100), updates[0].Message.Chat.ID)
}
