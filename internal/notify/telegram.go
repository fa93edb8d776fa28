package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/user/reelqueue-go/internal/model"
)

// TelegramNotifier sends publish outcome messages to a Telegram chat
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier for the given bot token and chat
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// PublishSucceeded reports a successful publish
func (n *TelegramNotifier) PublishSucceeded(upload *model.Upload) {
	text := fmt.Sprintf("✅ Reel published\nupload: %s\nmedia id: %s", upload.ID, upload.MediaID)
	n.send(text)
}

// PublishFailed reports a failed publish with its diagnostic text
func (n *TelegramNotifier) PublishFailed(upload *model.Upload, reason string) {
	text := fmt.Sprintf("❌ Reel publish failed\nupload: %s\nreason: %s", upload.ID, reason)
	n.send(text)
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram notification")
	}
}
