// Package telegram posts operator notifications to a Telegram chat.
package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the Bot API the notifier needs. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// OpsNotifier queues short texts for the operator chat and delivers them from
// a single goroutine so callers never wait on Telegram.
type OpsNotifier struct {
	bot    Sender
	chatID int64
	send   chan string
	log    zerolog.Logger
}

// NewBotAPI authorizes against Telegram with token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return bot, nil
}

// NewOpsNotifier builds a notifier posting to chatID.
func NewOpsNotifier(bot Sender, chatID int64, log zerolog.Logger) *OpsNotifier {
	return &OpsNotifier{
		bot:    bot,
		chatID: chatID,
		send:   make(chan string, 64),
		log:    log.With().Str("component", "ops-notifier").Logger(),
	}
}

// Notify queues text. When the queue is full the notification is dropped.
func (n *OpsNotifier) Notify(_ context.Context, text string) {
	if n == nil {
		return
	}
	select {
	case n.send <- text:
	default:
		n.log.Warn().Str("text", text).Msg("ops queue full, notification dropped")
	}
}

// Run delivers queued notifications until ctx is cancelled.
func (n *OpsNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.send:
			msg := tgbotapi.NewMessage(n.chatID, text)
			msg.DisableWebPagePreview = true
			if _, err := n.bot.Send(msg); err != nil {
				n.log.Error().Err(err).Msg("failed to send ops notification")
			}
		}
	}
}
