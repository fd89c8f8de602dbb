package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests.
const telegramSendInterval = 2 * time.Second

// Telegram rejects longer messages.
const maxMessageLen = 4000

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends run reports to one chat
type TelegramNotifier struct {
	bot      messageSender
	chatID   int64
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegramNotifier connects to the bot API and checks the token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	me, err := bot.GetMe()
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}

	slog.Info("Telegram notifier initialized", "bot", me.UserName, "chat_id", chatID)
	return newTelegramNotifier(bot, chatID, telegramSendInterval), nil
}

func newTelegramNotifier(bot messageSender, chatID int64, interval time.Duration) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, interval: interval}
}

// Notify sends text as a Markdown message, waiting out the send interval first.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if n == nil || n.bot == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}

	msg := tgbotapi.NewMessage(n.chatID, truncateString(text, maxMessageLen))
	msg.ParseMode = tgbotapi.ModeMarkdown

	n.mu.Lock()
	defer n.mu.Unlock()

	if elapsed := time.Since(n.lastSend); elapsed < n.interval {
		wait := n.interval - elapsed
		slog.Debug("Telegram send: waiting for rate limit", "wait_time", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	sendStart := time.Now()
	n.lastSend = sendStart
	if _, err := n.bot.Send(msg); err != nil {
		slog.Error("Telegram send: failed", "error", err, "message_preview", truncateString(text, 50))
		return fmt.Errorf("telegram send: %w", err)
	}
	slog.Info("Telegram send: success", "send_duration", time.Since(sendStart))
	return nil
}

// truncateString truncates a string to at most maxLen bytes without splitting a rune
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// EscapeMarkdown escapes the characters legacy Telegram Markdown treats as markup.
func EscapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
