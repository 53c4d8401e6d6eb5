// Package webhook provides generic webhook delivery via HTTP POST.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"device-relay/internal/events"
	"device-relay/internal/render"
	"device-relay/internal/sender/validation"
	"device-relay/internal/shared"
)

// Sender implements webhook delivery via HTTP POST.
type Sender struct {
	client *resty.Client
}

// NewSender creates a new webhook sender. The client never retries on its own.
func NewSender() *Sender {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "device-relay")
	return &Sender{client: client}
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return "webhook"
}

var dummyWebhookHosts = []string{
	"example.com",
	"example.org",
	"example.net",
	"test.com",
	"invalid",
}

// isDummyWebhookURL reports documentation and placeholder hosts, which are skipped.
func isDummyWebhookURL(destination string) bool {
	parsed, err := url.Parse(destination)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, dummy := range dummyWebhookHosts {
		if host == dummy || strings.HasSuffix(host, "."+dummy) {
			return true
		}
	}
	return false
}

// Send posts the record JSON plus its digest to a webhook URL.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if destination == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !validation.IsValidURL(destination) {
		return fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", destination)
	}

	if isDummyWebhookURL(destination) {
		slog.Info("Skipping dummy webhook endpoint",
			"webhook_url", destination,
			"event_id", record.ID,
		)
		return nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(render.BuildWebhookPayload(record)).
		Post(destination)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification to %s: %w", shared.MaskURL(destination), err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	slog.Info("Successfully sent webhook notification",
		"webhook_url", shared.MaskURL(destination),
		"event_id", record.ID,
	)
	return nil
}
