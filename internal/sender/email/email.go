// Package email delivers event records by email: the rich report to regular
// recipients, and the compact digest to SMS carrier gateways.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"device-relay/internal/events"
	"device-relay/internal/render"
	"device-relay/internal/sender/email/provider"
	"device-relay/internal/sender/retry"
	"device-relay/internal/sender/validation"
	"device-relay/internal/shared"
)

// Mailer sends one email. *provider.Registry implements it.
type Mailer interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// Config holds the settings shared by the email and SMS senders.
type Config struct {
	From       string
	MaxRetries int
	// Limiter throttles outbound mail across senders. Nil means unlimited.
	Limiter *rate.Limiter
}

// Sender implements email delivery for one channel kind.
type Sender struct {
	kind   string
	mode   render.Mode
	mailer Mailer
	cfg    Config
}

// NewSender creates the "email" channel, which sends the rich report.
func NewSender(mailer Mailer, cfg Config) *Sender {
	return &Sender{kind: "email", mode: render.ModeRich, mailer: mailer, cfg: cfg}
}

// NewSMSSender creates the "sms" channel, which sends the digest without a
// subject to carrier email-to-SMS gateway addresses.
func NewSMSSender(mailer Mailer, cfg Config) *Sender {
	return &Sender{kind: "sms", mode: render.ModeSMS, mailer: mailer, cfg: cfg}
}

// NewLimiter returns a limiter allowing perSecond messages with a matching burst.
func NewLimiter(perSecond float64) *rate.Limiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return s.kind
}

// Send renders the record and mails it. destination is a comma-separated
// list of addresses.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if destination == "" {
		return fmt.Errorf("%s recipient is required", s.kind)
	}

	recipients := shared.SplitList(destination)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid %s recipients provided", s.kind)
	}
	for _, r := range recipients {
		if !validation.IsValidEmail(r) {
			return fmt.Errorf("invalid %s address: %q", s.kind, r)
		}
	}

	payload, err := render.Render(record, s.mode)
	if err != nil {
		return err
	}

	req := &provider.EmailRequest{
		From:    s.cfg.From,
		To:      recipients,
		Subject: payload.Subject,
		Text:    payload.Text,
		HTML:    payload.HTML,
	}

	operation := fmt.Sprintf("send_%s_%s", s.kind, record.ID)
	err = retry.WithRetry(ctx, retry.NewConfig(s.cfg.MaxRetries), operation, func() error {
		if s.cfg.Limiter != nil {
			if err := s.cfg.Limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s rate limit wait: %w", s.kind, err)
			}
		}
		return s.mailer.Send(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", s.kind, err)
	}

	slog.Info("Successfully sent "+s.kind+" notification",
		"to", destination,
		"event_id", record.ID,
		"event_type", record.EventType,
	)
	return nil
}
