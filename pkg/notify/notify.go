// Package notify fans job outcomes out to the configured chat channels.
// Delivery is best-effort: a failed notification is logged and dropped,
// never propagated to the job that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Hub prefixes messages with the environment and fans them out.
type Hub struct {
	env     string
	senders []Sender
}

// NewHub builds a hub over the given channels. A hub with no senders is a
// valid no-op.
func NewHub(env string, senders ...Sender) *Hub {
	return &Hub{env: env, senders: senders}
}

// Enabled reports whether any channel is configured.
func (h *Hub) Enabled() bool {
	return len(h.senders) > 0
}

// NotifySuccess reports a completed job.
func (h *Hub) NotifySuccess(ctx context.Context, msg string) {
	h.send(ctx, "OK", msg)
}

// NotifyError reports a failed job.
func (h *Hub) NotifyError(ctx context.Context, msg string) {
	h.send(ctx, "ERROR", msg)
}

func (h *Hub) send(ctx context.Context, level, msg string) {
	text := fmt.Sprintf("[%s] %s: %s", h.env, level, msg)
	for _, s := range h.senders {
		if err := s.Send(ctx, text); err != nil {
			logger.Warn("Notification delivery failed",
				"channel", s.Name(), "error", err)
		}
	}
}

func postJSON(ctx context.Context, hc *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// Telegram sends through the bot API.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	hc      *http.Client
}

// NewTelegram builds a Telegram channel for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	return postJSON(ctx, t.hc, url, map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
}

// Mattermost sends through an incoming webhook.
type Mattermost struct {
	webhookURL string
	hc         *http.Client
}

// NewMattermost builds a Mattermost channel for the given webhook.
func NewMattermost(webhookURL string) *Mattermost {
	return &Mattermost{
		webhookURL: webhookURL,
		hc:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Mattermost) Name() string { return "mattermost" }

func (m *Mattermost) Send(ctx context.Context, text string) error {
	return postJSON(ctx, m.hc, m.webhookURL, map[string]string{"text": text})
}
