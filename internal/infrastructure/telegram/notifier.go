package telegram

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"EarningsTracker/internal/ports"
)

// maxMessageRunes is Telegram's per-message text limit.
const maxMessageRunes = 4096

// Sender is the slice of the bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier mirrors digests into a Telegram chat.
type Notifier struct {
	bot    Sender
	chatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier logs in with the bot token; chatID is the numeric chat identifier.
func NewNotifier(botToken, chatID string) (*Notifier, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewNotifierWithSender(bot, id), nil
}

// NewNotifierWithSender wires an existing bot client.
func NewNotifierWithSender(bot Sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// PublishDigest sends digest as plain text, split at Telegram's size limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if digest == "" {
		return nil
	}
	for _, chunk := range split(digest, maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, chunk)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		end := min(limit, len(runes))
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}
