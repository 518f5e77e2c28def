// Package notify delivers booking outcomes to external channels.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"rezerv/internal/events"
)

// Telegram forwards booking events to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

// Attach subscribes the notifier to booking outcomes on the bus.
func (t *Telegram) Attach(bus *events.Bus) {
	bus.Subscribe(events.TypeBookingSaved, t.onEvent)
	bus.Subscribe(events.TypeBookingDeleted, t.onEvent)
	bus.Subscribe(events.TypeBookingFailed, t.onEvent)
}

func (t *Telegram) onEvent(e events.Event) {
	text := e.Message
	if e.Booking != nil {
		text = fmt.Sprintf("%s: %s %s at %s", e.Message, e.Booking.ServiceID,
			e.Booking.SelectedDate, firstTime(e.Booking.SelectedTimes))
	}
	if e.Err != nil {
		text = fmt.Sprintf("%s (%v)", text, e.Err)
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn().Err(err).Msg("telegram notify failed")
	}
}

func firstTime(times []string) string {
	if len(times) == 0 {
		return "?"
	}
	return times[0]
}
