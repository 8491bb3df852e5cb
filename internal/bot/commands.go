package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/producer"
	"postgate/internal/queue"
	"postgate/internal/services/textgen"
)

const (
	msgUnauthorized = "⛔ Unauthorized"
	msgError        = "❌ An error occurred. Please try again."
)

func (b *Bot) cmdStart(chatID int64) error {
	b.reply(chatID, "🤖 *Postgate Bot*\n\n"+
		"Commands:\n"+
		"/research <topic> - Research a topic\n"+
		"/market <query> - Market analysis\n"+
		"/create post <desc> - Create Instagram post\n"+
		"/pending - View pending approvals\n"+
		"/status - System status\n"+
		"/help - Full command list")
	return nil
}

func (b *Bot) cmdHelp(chatID int64) error {
	b.reply(chatID, "📚 *Full Command List*\n\n"+
		"*Research:*\n"+
		"/research <topic> - Deep research\n"+
		"/market <query> - Market analysis\n\n"+
		"*Content:*\n"+
		"/create post <description> - Create post\n"+
		"/create image <description> - Generate image\n\n"+
		"*Instagram:*\n"+
		"/pending - View queue\n"+
		"/approve <id> - Approve post\n"+
		"/reject <id> - Reject post\n\n"+
		"*System:*\n"+
		"/status - Health check")
	return nil
}

func (b *Bot) cmdCreate(ctx context.Context, chatID, userID int64, args string) error {
	kind, description, _ := strings.Cut(args, " ")
	description = strings.TrimSpace(description)
	contentType, err := queue.ParseContentType(kind)
	if err != nil || description == "" {
		b.reply(chatID, "Usage:\n`/create post <description>`\n`/create image <description>`")
		return nil
	}

	b.reply(chatID, fmt.Sprintf("🎨 Creating %s...", contentType))
	item, err := b.deps.Producer.Generate(ctx, producer.Request{
		Type:        contentType,
		Description: description,
		RequestedBy: fmt.Sprintf("%d", userID),
	})
	if err != nil {
		b.logger.Error("create failed", logging.Error(err))
		b.reply(chatID, "❌ Creation failed.")
		return nil
	}

	content := "Image only"
	if item.Content != "" {
		content = escapeMarkdown(truncate(item.Content, 500)) + "..."
	}
	b.reply(chatID, fmt.Sprintf("✅ Created and queued for approval!\n\n*ID:* `%s`\n*Content:*\n%s\n\nUse /pending to review.", item.ID, content))
	return nil
}

func (b *Bot) cmdPending(ctx context.Context, chatID int64) error {
	items, err := b.deps.Store.List(ctx, queue.CollectionPending)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		b.reply(chatID, "✅ No pending items.")
		return nil
	}
	queue.SortNewest(items)
	if len(items) > pendingListLimit {
		items = items[:pendingListLimit]
	}
	for _, item := range items {
		preview := "N/A"
		if item.Content != "" {
			preview = escapeMarkdown(truncate(item.Content, previewLimit)) + "..."
		}
		text := fmt.Sprintf("📋 *Pending: %s*\nType: %s\nDescription: %s\nCreated: %s\n\nPreview:\n%s",
			escapeMarkdown(item.ID),
			titleCase(string(item.Type)),
			escapeMarkdown(item.Description),
			item.CreatedAt.Local().Format(time.DateTime),
			preview,
		)
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve_"+item.ID),
				tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject_"+item.ID),
			),
		)
		b.send(chatID, text, markup)
	}
	return nil
}

func (b *Bot) cmdDecide(ctx context.Context, chatID int64, args string, dec queue.Decision) error {
	id := strings.TrimSpace(args)
	if !queue.ValidID(id) {
		b.reply(chatID, fmt.Sprintf("Usage: `/%s <id>`", dec))
		return nil
	}
	if _, err := b.deps.Decider.Decide(ctx, id, dec); err != nil {
		explained := b.deps.Decider.Explain(ctx, id, err)
		if explained.Outcome == decision.OutcomeFailed {
			return err
		}
		b.reply(chatID, "⚠️ "+escapeMarkdown(explained.Message))
		return nil
	}
	label := "✅ Approved"
	if dec == queue.DecisionReject {
		label = "❌ Rejected"
	}
	b.reply(chatID, fmt.Sprintf("%s: `%s`", label, id))
	return nil
}

func (b *Bot) cmdStatus(ctx context.Context, chatID int64) error {
	uptime := time.Since(b.started)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	pendingCount := "?"
	if items, err := b.deps.Store.List(ctx, queue.CollectionPending); err == nil {
		pendingCount = fmt.Sprintf("%d", len(items))
	}

	text := fmt.Sprintf("🖥️ *System Status*\n\n"+
		"Bot: ✅ Running\n"+
		"Uptime: %dh %dm\n"+
		"Memory: %dMB\n"+
		"Pending: %s\n\n"+
		"*Services:*\n"+
		"%s: %s\n"+
		"Instagram: %s\n"+
		"Freepik: %s",
		hours, minutes,
		mem.HeapAlloc/1024/1024,
		pendingCount,
		titleCase(b.cfg.Text.Provider), check(b.cfg.Text.APIKey != "", "❌"),
		check(b.cfg.Instagram.AccessToken != "" && b.cfg.Instagram.AccountID != "", "⚠️"),
		check(b.cfg.ImageEnabled(), "⚠️"),
	)
	b.reply(chatID, text)
	return nil
}

func (b *Bot) cmdResearch(ctx context.Context, chatID int64, topic string) error {
	if topic == "" {
		b.reply(chatID, "Usage: `/research <topic>`")
		return nil
	}
	b.reply(chatID, fmt.Sprintf("🔍 Researching: *%s*...", escapeMarkdown(topic)))
	result, err := b.deps.Text.Generate(ctx, textgen.ResearchPrompt(topic), b.cfg.Text.ResearchMaxTokens)
	if err != nil {
		b.logGenerationError("research", err)
		b.reply(chatID, "❌ Research failed. Check logs for details.")
		return nil
	}
	b.reply(chatID, fmt.Sprintf("📊 *Research: %s*\n\n%s", escapeMarkdown(topic), escapeMarkdown(truncate(result, replyLimit))))
	return nil
}

func (b *Bot) cmdMarket(ctx context.Context, chatID int64, query string) error {
	if query == "" {
		b.reply(chatID, "Usage: `/market <query>`")
		return nil
	}
	b.reply(chatID, fmt.Sprintf("📈 Analyzing: *%s*...", escapeMarkdown(query)))
	result, err := b.deps.Text.Generate(ctx, textgen.MarketPrompt(query), b.cfg.Text.ResearchMaxTokens)
	if err != nil {
		b.logGenerationError("market", err)
		b.reply(chatID, "❌ Analysis failed.")
		return nil
	}
	b.reply(chatID, fmt.Sprintf("📊 *Market Analysis: %s*\n\n%s", escapeMarkdown(query), escapeMarkdown(truncate(result, replyLimit))))
	return nil
}

func (b *Bot) logGenerationError(command string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	b.logger.Error("text generation failed", logging.String("command", command), logging.Error(err))
}

func check(ok bool, missing string) string {
	if ok {
		return "✅"
	}
	return missing
}
