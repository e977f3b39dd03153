// Package whatsapp delivers text messages to patients through an HTTP webhook in front
// of the WhatsApp provider.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	// Send delivers body to the E.164 number to and returns the provider message id.
	Send(ctx context.Context, to string, body string) (string, error)
	ProviderID() string
}

var ErrNotConfigured = errors.New("whatsapp webhook url not configured")

type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithClient replaces the HTTP client, mostly for tests.
func (s *WebhookSender) WithClient(c *http.Client) *WebhookSender {
	s.http = c
	return s
}

func (s *WebhookSender) ProviderID() string {
	return "whatsapp-webhook"
}

type webhookRequest struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	Channel string `json:"channel"`
}

type webhookResponse struct {
	SID       string `json:"sid"`
	MessageID string `json:"message_id"`
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) (string, error) {
	if s.url == "" {
		return "", ErrNotConfigured
	}
	raw, err := json.Marshal(webhookRequest{To: "whatsapp:" + to, Body: body, Channel: "whatsapp"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("whatsapp webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// Providers that answer without a body still count as accepted.
	var out webhookResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if out.SID != "" {
		return out.SID, nil
	}
	return out.MessageID, nil
}

// NoopSender accepts every message without sending it. It backs local setups with no
// provider configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "whatsapp-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) (string, error) {
	return "", nil
}
