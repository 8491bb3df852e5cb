package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"postgate/internal/config"
	"postgate/internal/queue"
)

// Service defines the notification surface exposed to the publisher.
type Service interface {
	NotifyPublished(ctx context.Context, item queue.Item) error
	NotifyPublishFailed(ctx context.Context, item queue.Item, err error) error
	NotifyQuotaReached(ctx context.Context, limit int) error
	NotifySweepCompleted(ctx context.Context, published, failed int, duration time.Duration) error
}

// Sender is the subset of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewService builds a Telegram-backed notifier when a sender and admin id
// are available, and a no-op otherwise.
func NewService(cfg *config.Config, sender Sender) Service {
	if sender == nil || cfg == nil || cfg.Telegram.AdminID == 0 {
		return noopService{}
	}
	return &telegramService{chatID: cfg.Telegram.AdminID, sender: sender}
}

type payload struct {
	title   string
	message string
}

type telegramService struct {
	chatID int64
	sender Sender
}

func (n *telegramService) NotifyPublished(ctx context.Context, item queue.Item) error {
	message := fmt.Sprintf("✅ Published %s", item.ID)
	if item.PostID != "" {
		message = fmt.Sprintf("%s (media %s)", message, item.PostID)
	}
	return n.send(ctx, payload{
		title:   "Instagram",
		message: message + "\n" + preview(item.Caption(), 120),
	})
}

func (n *telegramService) NotifyPublishFailed(ctx context.Context, item queue.Item, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Publish failed for ")
	builder.WriteString(item.ID)
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	builder.WriteString("\nThe item stays approved and will be retried next sweep.")
	return n.send(ctx, payload{title: "Instagram", message: builder.String()})
}

func (n *telegramService) NotifyQuotaReached(ctx context.Context, limit int) error {
	return n.send(ctx, payload{
		title:   "Instagram",
		message: fmt.Sprintf("Daily limit of %d posts reached; remaining approved items wait until tomorrow.", limit),
	})
}

func (n *telegramService) NotifySweepCompleted(ctx context.Context, published, failed int, duration time.Duration) error {
	if published == 0 && failed == 0 {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	var message string
	if failed == 0 {
		message = fmt.Sprintf("Sweep complete: %d published in %s", published, duration)
	} else {
		message = fmt.Sprintf("Sweep complete: %d published, %d failed in %s", published, failed, duration)
	}
	return n.send(ctx, payload{title: "Publisher", message: message})
}

func (n *telegramService) send(ctx context.Context, data payload) error {
	if n == nil || n.sender == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := data.message
	if data.title != "" {
		text = data.title + "\n" + text
	}
	if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

func preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, queue.Item) error                  { return nil }
func (noopService) NotifyPublishFailed(context.Context, queue.Item, error) error       { return nil }
func (noopService) NotifyQuotaReached(context.Context, int) error                      { return nil }
func (noopService) NotifySweepCompleted(context.Context, int, int, time.Duration) error { return nil }
