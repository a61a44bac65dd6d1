package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed sidebar colors per event, so a settlement reads green and a degraded
// indexer reads amber at a glance.
const (
	colorResolved = 0x2ECC71
	colorCreated  = 0x3498DB
	colorDegraded = 0xE67E22
	colorError    = 0xE74C3C
	colorNeutral  = 0x95A5A6
)

// DiscordSender posts alerts to a Discord channel through an incoming
// webhook, one embed per notification.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

// Send posts one embed to the webhook. Discord answers 204 No Content on
// success; anything else carries an error body worth surfacing.
func (d *DiscordSender) Send(ctx context.Context, event, title, message string) error {
	payload := struct {
		Embeds []discordEmbed `json:"embeds"`
	}{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor(event),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func embedColor(event string) int {
	switch event {
	case "market_resolved":
		return colorResolved
	case "market_created":
		return colorCreated
	case "indexer_degraded":
		return colorDegraded
	case "error", "resolution_failed":
		return colorError
	default:
		return colorNeutral
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
