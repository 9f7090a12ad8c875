package social

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"newsdesk/internal/models"
	"newsdesk/internal/telegram"
)

// TelegramPublisher posts finished content to per-language Telegram channels
// through the same bot that runs moderation.
type TelegramPublisher struct {
	client   *telegram.Client
	channels map[models.Language]int64
}

func NewTelegramPublisher(client *telegram.Client, channels map[models.Language]int64) *TelegramPublisher {
	return &TelegramPublisher{client: client, channels: channels}
}

func (p *TelegramPublisher) Platform() models.Platform {
	return models.PlatformTelegram
}

func (p *TelegramPublisher) Publish(ctx context.Context, req PostRequest) (PostResult, error) {
	channelID, ok := p.channels[req.Language]
	if !ok {
		return PostResult{}, fmt.Errorf("no telegram channel configured for language %q", req.Language)
	}

	text := req.Title
	if req.Body != "" {
		text += "\n\n" + req.Body
	}
	if req.ImageURL != "" {
		text += "\n\n" + req.ImageURL
	}

	msg, err := p.client.SendMessage(ctx, channelID, text, nil)
	if err != nil {
		return PostResult{}, fmt.Errorf("post to telegram channel: %w", err)
	}

	return PostResult{
		PostID: strconv.FormatInt(msg.MessageID, 10),
		URL:    channelPostURL(channelID, msg.MessageID),
	}, nil
}

// channelPostURL builds the t.me link for a channel post. Supergroup and
// channel chat IDs carry a -100 prefix that the web URL omits.
func channelPostURL(chatID, messageID int64) string {
	id := strconv.FormatInt(chatID, 10)
	id = strings.TrimPrefix(id, "-100")
	id = strings.TrimPrefix(id, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}
