package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestNotify_SendsMarkdownToChat(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, 42, 0)

	if err := n.Notify(context.Background(), "*Loterias* ok"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.Text != "*Loterias* ok" || msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("message = %+v", msg)
	}
}

func TestNotify_HonoursContextWhileRateLimited(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, 1, time.Hour)
	if err := n.Notify(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, "second"); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify error = %v, want context.Canceled", err)
	}
	if len(bot.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(bot.sent))
	}
}

func TestNotify_Errors(t *testing.T) {
	var nilNotifier *TelegramNotifier
	if err := nilNotifier.Notify(context.Background(), "x"); err == nil {
		t.Error("nil notifier should fail")
	}

	n := newTelegramNotifier(&fakeBot{err: errors.New("Too Many Requests")}, 1, 0)
	if err := n.Notify(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "Too Many Requests") {
		t.Errorf("Notify error = %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in       string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"añb", 2, "a..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.expected)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("lae_buscador[LP,*]"); got != `lae\_buscador\[LP,\*]` {
		t.Errorf("EscapeMarkdown = %q", got)
	}
}
