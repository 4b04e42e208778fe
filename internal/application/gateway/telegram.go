package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Update is one entry from getUpdates, reduced to the fields the
// gateway reads.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// TelegramClient is a thin Bot API client: sendMessage, long-poll
// getUpdates and webhook teardown, nothing more.
type TelegramClient struct {
	base string
	http *http.Client
}

func NewTelegramClient(token string, timeout time.Duration) *TelegramClient {
	return &TelegramClient{
		base: "https://api.telegram.org/bot" + token,
		// Long polls run up to 30s on top of the network budget.
		http: &http.Client{Timeout: timeout + 35*time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *TelegramClient) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: %s", method, api.Description)
	}
	if result != nil {
		return json.Unmarshal(api.Result, result)
	}
	return nil
}

// SendMessage delivers HTML-formatted text to a chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// GetUpdates long-polls for updates after offset.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	}, &updates)
	return updates, err
}

// DeleteWebhook clears any webhook so long polling can take over.
func (c *TelegramClient) DeleteWebhook(ctx context.Context) {
	if err := c.call(ctx, "deleteWebhook", map[string]any{}, nil); err != nil {
		log.Warn().Err(err).Msg("delete webhook failed")
	}
}
