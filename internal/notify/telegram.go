// Package notify dispatches fire-and-forget user notifications. Delivery
// failures are logged and swallowed; the engine's transactions never depend
// on the notification channel.
package notify

import (
	"context"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramNotifier sends notifications as Telegram messages. User ids double
// as chat ids, the same convention the platform's bot onboarding establishes.
type TelegramNotifier struct {
	bot    *bot.Bot
	logger *zap.Logger
}

func NewTelegramNotifier(token string, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: b, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, message string) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: userID,
		Text:   message,
	})
	if err != nil {
		n.logger.Warn("Failed to deliver notification",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return
	}
	n.logger.Debug("Notification delivered", zap.Int64("user_id", userID))
}
