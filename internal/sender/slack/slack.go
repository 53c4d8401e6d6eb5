// Package slack provides Slack notification sending via Incoming Webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"device-relay/internal/events"
	"device-relay/internal/render"
	"device-relay/internal/sender/validation"
	"device-relay/internal/shared"
)

// Sender implements Slack notification sending via Incoming Webhooks.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a new Slack sender.
func NewSender() *Sender {
	return &Sender{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return "slack"
}

// Send posts the record to a Slack incoming-webhook URL.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if destination == "" {
		return fmt.Errorf("slack webhook URL is required")
	}
	if !validation.IsValidURL(destination) {
		return fmt.Errorf("invalid Slack webhook URL: %q (must be a valid HTTP/HTTPS URL, not a channel name)", destination)
	}

	body, err := json.Marshal(render.BuildSlackPayload(record))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification to %s: %w", shared.MaskURL(destination), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Successfully sent Slack notification",
		"webhook_url", shared.MaskURL(destination),
		"event_id", record.ID,
	)
	return nil
}
