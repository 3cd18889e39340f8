package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"

	"github.com/haruo/melnotify/internal/oauth"
	"github.com/haruo/melnotify/internal/store"
)

// Bot is the chat transport: it handles inbound user messages (linking,
// status, manual checks) and pushes mail notifications back out.
type Bot struct {
	bot      *bot.Bot
	accounts *store.AccountStore
	quota    *store.QuotaStore
	oauth    *oauth.Client
	limit    int
	trigger  func(context.Context) error
	logger   *slog.Logger
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token       string
	Accounts    *store.AccountStore
	Quota       *store.QuotaStore
	OAuth       *oauth.Client
	NotifyLimit int
	Logger      *slog.Logger
}

// NewBot creates a Telegram bot and registers its handlers
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		accounts: deps.Accounts,
		quota:    deps.Quota,
		oauth:    deps.OAuth,
		limit:    deps.NotifyLimit,
		logger:   deps.Logger.With("component", "telegram_bot"),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, b.handleStatus)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/check", bot.MatchTypePrefix, b.handleCheck)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
}

// SetTrigger wires the on-demand poll trigger. Set after the checker is
// constructed because the checker also needs this bot as its dispatcher.
func (b *Bot) SetTrigger(fn func(context.Context) error) {
	b.trigger = fn
}

// Start starts long-polling for updates; blocks until ctx is cancelled
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// Push delivers a composed notification to a chat identity. Implements the
// checker's Dispatcher.
func (b *Bot) Push(ctx context.Context, chatUserID, text string) error {
	chatID, err := strconv.ParseInt(chatUserID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat user id %q: %w", chatUserID, err)
	}

	if _, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// reply sends a plain text reply, logging delivery failures
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		b.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}
