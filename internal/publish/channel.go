package publish

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChannelClient delivers formatted messages to the target channel. The
// publisher depends on this interface so delivery can be faked in tests.
type ChannelClient interface {
	// SendPhoto delivers a photo by URL with a MarkdownV2 caption.
	SendPhoto(ctx context.Context, photoURL, caption string) error
	// SendMessage delivers a MarkdownV2 text message.
	SendMessage(ctx context.Context, text string) error
}

// TelegramClient implements ChannelClient against the Telegram Bot API.
type TelegramClient struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramClient authenticates the bot and binds it to the target chat.
func NewTelegramClient(token string, chatID int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &TelegramClient{bot: bot, chatID: chatID}, nil
}

// SendPhoto delivers a photo with caption to the bound chat.
func (c *TelegramClient) SendPhoto(_ context.Context, photoURL, caption string) error {
	photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := c.bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// SendMessage delivers a text message to the bound chat.
func (c *TelegramClient) SendMessage(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = false

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
