// Package notify publishes best-effort pipeline events to operators.
// Publish never returns an error: notification failures must not affect
// the pipeline, so they are logged and counted instead.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lantern-intel/lantern/internal/platform/observability"
)

// Notifier publishes pipeline events.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload map[string]string)
}

// Telegram sends events as plain-text messages to a single operator chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

// NewTelegram creates a Telegram notifier. The token must belong to a bot
// that can post to chatID.
func NewTelegram(token string, chatID int64, logger *zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Publish(_ context.Context, eventType string, payload map[string]string) {
	msg := tgbotapi.NewMessage(t.chatID, formatEvent(eventType, payload))

	if _, err := t.bot.Send(msg); err != nil {
		observability.NotificationsPublished.WithLabelValues(observability.StatusError).Inc()
		t.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish notification")

		return
	}

	observability.NotificationsPublished.WithLabelValues(observability.StatusSuccess).Inc()
}

// formatEvent renders an event as "type | k=v | k=v" with sorted keys.
func formatEvent(eventType string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	b.WriteString(eventType)

	for _, k := range keys {
		b.WriteString(" | ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(payload[k])
	}

	return b.String()
}

// Noop discards all events; used when no bot token is configured.
type Noop struct{}

// NewNoop creates a notifier that drops everything.
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Publish(context.Context, string, map[string]string) {}

// Log writes events to the structured log only. Useful in development.
type Log struct {
	Logger *zerolog.Logger
}

func (l *Log) Publish(_ context.Context, eventType string, payload map[string]string) {
	event := l.Logger.Info().Str("event", eventType)
	for k, v := range payload {
		event = event.Str(k, v)
	}

	event.Msg("pipeline event")
	observability.NotificationsPublished.WithLabelValues(observability.StatusSuccess).Inc()
}
