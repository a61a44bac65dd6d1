package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// eventMarker prefixes a Telegram message with a glyph operators can scan for
// in a busy channel. Unknown events get no marker.
var eventMarker = map[string]string{
	"market_resolved":   "✅",
	"market_created":    "\U0001F195",
	"indexer_degraded":  "⚠️",
	"resolution_failed": "\U0001F6A8",
	"error":             "\U0001F6A8",
}

// TelegramSender posts settlement and indexer alerts to a Telegram chat via
// the Bot API.
type TelegramSender struct {
	base   string
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		base:   telegramAPI,
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one message through sendMessage. The request is form-encoded;
// a non-ok API answer surfaces Telegram's own description so operators see
// why delivery failed (bad chat ID, bot kicked, markdown rejected).
func (t *TelegramSender) Send(ctx context.Context, event, title, message string) error {
	var text strings.Builder
	if marker := eventMarker[event]; marker != "" {
		text.WriteString(marker)
		text.WriteString(" ")
	}
	fmt.Fprintf(&text, "*%s*\n%s", title, message)

	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {text.String()},
		"parse_mode": {"Markdown"},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	var answer struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, string(raw))
	}
	if !answer.OK {
		return fmt.Errorf("telegram: api rejected message: %s", answer.Description)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
