package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/chartvision-agent/internal/config"
	"github.com/camuig/chartvision-agent/internal/logger"
)

// TelegramSink forwards queue notifications to a Telegram chat so the
// operator sees trade entries, exits and failures away from the dashboard.
type TelegramSink struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewTelegramSink(cfg *config.Config, log *logger.Logger) *TelegramSink {
	if !cfg.Telegram.Enabled {
		return &TelegramSink{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &TelegramSink{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &TelegramSink{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

// Run drains a queue subscription until ctx is cancelled.
func (t *TelegramSink) Run(ctx context.Context, queue *Queue) {
	if !t.enabled {
		return
	}

	id, ch := queue.Subscribe()
	defer queue.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			t.send(n)
		}
	}
}

func (t *TelegramSink) send(n Notification) {
	emoji := "ℹ️"
	switch n.Level {
	case LevelSuccess:
		emoji = "🟢"
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🔴"
	}

	text := fmt.Sprintf("%s *%s*\n%s", emoji, n.Title, n.Message)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("send telegram message", "error", err)
	}
}
