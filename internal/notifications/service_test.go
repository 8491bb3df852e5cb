package notifications_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"postgate/internal/config"
	"postgate/internal/notifications"
	"postgate/internal/queue"
)

type recordingSender struct {
	messages []tgbotapi.MessageConfig
	err      error
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.messages = append(r.messages, msg)
	}
	return tgbotapi.Message{}, r.err
}

func TestNewServiceReturnsNoopWithoutAdmin(t *testing.T) {
	cfg := config.Default()
	sender := &recordingSender{}
	svc := notifications.NewService(&cfg, sender)
	if err := svc.NotifyPublished(context.Background(), queue.Item{ID: "abc"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("noop notifier sent %d messages", len(sender.messages))
	}
}

func TestTelegramServiceFormatsMessages(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.AdminID = 42
	sender := &recordingSender{}
	svc := notifications.NewService(&cfg, sender)
	ctx := context.Background()

	item := queue.Item{ID: "abc123", Description: "sunset", PostID: "media-1"}
	if err := svc.NotifyPublished(ctx, item); err != nil {
		t.Fatalf("NotifyPublished: %v", err)
	}
	if err := svc.NotifyPublishFailed(ctx, item, errors.New("token expired")); err != nil {
		t.Fatalf("NotifyPublishFailed: %v", err)
	}
	if err := svc.NotifyQuotaReached(ctx, 10); err != nil {
		t.Fatalf("NotifyQuotaReached: %v", err)
	}
	if err := svc.NotifySweepCompleted(ctx, 0, 0, time.Second); err != nil {
		t.Fatalf("NotifySweepCompleted: %v", err)
	}
	if err := svc.NotifySweepCompleted(ctx, 2, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifySweepCompleted: %v", err)
	}

	tests := []struct {
		name   string
		expect string
	}{
		{name: "published", expect: "✅ Published abc123 (media media-1)\nsunset"},
		{name: "failed", expect: "❌ Publish failed for abc123: token expired"},
		{name: "quota", expect: "Daily limit of 10 posts reached"},
		{name: "sweep", expect: "Sweep complete: 2 published, 1 failed in 1m30s"},
	}
	if len(sender.messages) != len(tests) {
		t.Fatalf("expected %d messages, got %d", len(tests), len(sender.messages))
	}
	for i, tc := range tests {
		msg := sender.messages[i]
		if msg.ChatID != 42 {
			t.Fatalf("%s: unexpected chat id %d", tc.name, msg.ChatID)
		}
		if !strings.Contains(msg.Text, tc.expect) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.expect, msg.Text)
		}
	}
}

func TestTelegramServiceReportsSendErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.AdminID = 42
	svc := notifications.NewService(&cfg, &recordingSender{err: errors.New("blocked")})
	if err := svc.NotifyQuotaReached(context.Background(), 1); err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected send error, got %v", err)
	}
}
