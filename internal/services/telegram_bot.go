package services

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramSender is the part of *tgbotapi.BotAPI the service uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramService posts deal notifications to one team chat.
type TelegramService struct {
	bot    telegramSender
	chatID int64
	log    *zap.Logger
}

// NewTelegramService connects to the Bot API when a token is set. With
// no token the service is a no-op.
func NewTelegramService(botToken string, chatID int64, log *zap.Logger) (*TelegramService, error) {
	t := &TelegramService{chatID: chatID, log: log}
	if botToken == "" {
		return t, nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot = bot
	log.Info("[tg] bot authorized", zap.String("username", bot.Self.UserName))
	return t, nil
}

func (t *TelegramService) Enabled() bool {
	return t != nil && t.bot != nil && t.chatID != 0
}

func (t *TelegramService) SendMessage(text string) error {
	if !t.Enabled() {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.log.Debug("[tg][send] ok", zap.Int64("chat_id", t.chatID))
	return nil
}
