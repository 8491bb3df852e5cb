package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"postgate/internal/config"
	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/producer"
	"postgate/internal/queue"
	"postgate/internal/services"
)

const (
	maxConcurrentUpdates = 4
	pendingListLimit     = 5
	replyLimit           = 4000
	previewLimit         = 300
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the collaborators the command handlers call.
type Deps struct {
	Store    queue.Store
	Producer *producer.Producer
	Decider  *decision.Decider
	Text     services.TextGenerator
}

// Bot routes Telegram updates to command handlers.
type Bot struct {
	cfg     *config.Config
	api     API
	deps    Deps
	logger  *slog.Logger
	started time.Time
}

// New constructs a Bot.
func New(cfg *config.Config, api API, deps Deps, logger *slog.Logger) *Bot {
	if deps.Text == nil {
		deps.Text = services.DisabledText{}
	}
	return &Bot{
		cfg:     cfg,
		api:     api,
		deps:    deps,
		logger:  logging.NewComponentLogger(logger, "bot"),
		started: time.Now(),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	group := &errgroup.Group{}
	group.SetLimit(maxConcurrentUpdates)
	b.logger.Info("bot polling for updates", logging.Int("allowed_chats", len(b.cfg.Telegram.AllowedChats)))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			_ = group.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				_ = group.Wait()
				return nil
			}
			group.Go(func() error {
				b.HandleUpdate(ctx, update)
				return nil
			})
		}
	}
}

// HandleUpdate processes one update. It never panics.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	chatID := chatOf(update)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, b.logger), "handler panic", "bot_handler_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			if chatID != 0 {
				b.reply(chatID, msgError)
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) authorized(userID, chatID int64) bool {
	return b.cfg.ChatAllowed(userID) || b.cfg.ChatAllowed(chatID)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	logger := logging.WithContext(ctx, b.logger)
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if !b.authorized(userID, chatID) {
		logging.WarnWithContext(logger, "unauthorized command", "bot_unauthorized",
			logging.Int64("user_id", userID),
			logging.Int64("chat_id", chatID),
			logging.String(logging.FieldErrorHint, "add the chat id to telegram.allowed_chats"),
			logging.String(logging.FieldImpact, "command ignored"),
		)
		b.reply(chatID, msgUnauthorized)
		return
	}

	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	logger.Debug("command received", logging.String("command", command), logging.Int64("chat_id", chatID))

	var err error
	switch command {
	case "start":
		err = b.cmdStart(chatID)
	case "help":
		err = b.cmdHelp(chatID)
	case "create":
		err = b.cmdCreate(ctx, chatID, userID, args)
	case "pending":
		err = b.cmdPending(ctx, chatID)
	case "approve":
		err = b.cmdDecide(ctx, chatID, args, queue.DecisionApprove)
	case "reject":
		err = b.cmdDecide(ctx, chatID, args, queue.DecisionReject)
	case "status":
		err = b.cmdStatus(ctx, chatID)
	case "research":
		err = b.cmdResearch(ctx, chatID, args)
	case "market":
		err = b.cmdMarket(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for the command list.")
	}
	if err != nil {
		logging.ErrorWithContext(logger, "command failed", "bot_command_failed",
			logging.String("command", command),
			logging.String(logging.FieldErrorKind, queue.KindOf(err)),
			logging.Error(err),
		)
		b.reply(chatID, msgError)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	logger := logging.WithContext(ctx, b.logger)
	var userID, chatID int64
	if cb.From != nil {
		userID = cb.From.ID
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	}
	if !b.authorized(userID, chatID) {
		b.answer(cb.ID, msgUnauthorized)
		return
	}

	action, id, ok := strings.Cut(cb.Data, "_")
	if !ok || id == "" {
		b.answer(cb.ID, "Unknown action")
		return
	}
	dec, err := queue.ParseDecision(action)
	if err != nil {
		b.answer(cb.ID, "Unknown action")
		return
	}
	ctx = services.WithItemID(ctx, id)

	if _, err := b.deps.Decider.Decide(ctx, id, dec); err != nil {
		explained := b.deps.Decider.Explain(ctx, id, err)
		if explained.Outcome == decision.OutcomeFailed {
			logging.ErrorWithContext(logger, "decision failed", "bot_decision_failed", logging.Error(err))
		}
		b.answer(cb.ID, "❌ "+explained.Message)
		if chatID != 0 && cb.Message != nil {
			b.edit(chatID, cb.Message.MessageID, "⚠️ "+escapeMarkdown(explained.Message))
		}
		return
	}

	answer, label := "✅ Approved!", "✅ Approved"
	if dec == queue.DecisionReject {
		answer, label = "❌ Rejected", "❌ Rejected"
	}
	b.answer(cb.ID, answer)
	if chatID != 0 && cb.Message != nil {
		b.edit(chatID, cb.Message.MessageID, fmt.Sprintf("%s: `%s`", label, id))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(chatID, text, nil)
}

func (b *Bot) send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("telegram send failed", logging.Int64("chat_id", chatID), logging.Error(err))
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("telegram callback answer failed", logging.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("telegram edit failed", logging.Int64("chat_id", chatID), logging.Error(err))
	}
}

func chatOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}
