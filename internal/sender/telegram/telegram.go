// Package telegram delivers the compact digest to Telegram chats through a bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"device-relay/internal/events"
	"device-relay/internal/render"
	"device-relay/internal/sender/validation"
)

// botAPI is the subset of *tele.Bot used for delivery.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Config holds bot settings. APIURL overrides the Bot API endpoint (tests, local Bot API servers).
type Config struct {
	Token   string
	APIURL  string
	Timeout time.Duration
}

// Sender implements Telegram delivery.
type Sender struct {
	bot botAPI
}

// NewSender creates a sender for an outbound-only bot. No updates are polled.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return "telegram"
}

// Send posts the digest to the chat identified by destination.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if !validation.IsValidChatID(destination) {
		return fmt.Errorf("invalid telegram chat id: %q", destination)
	}
	chatID, _ := strconv.ParseInt(destination, 10, 64)

	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.bot.Send(&tele.Chat{ID: chatID}, render.Digest(record), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
	}

	slog.Info("Successfully sent telegram notification",
		"chat_id", chatID,
		"message_id", msg.ID,
		"event_id", record.ID,
	)
	return nil
}
