package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haruo/melnotify/internal/checker"
	"github.com/haruo/melnotify/internal/store"
)

// triggerPhrase also starts a manual mail check, for users who type the
// product name instead of the /check command.
const triggerPhrase = "メル通知"

// handleStart handles /start: first contact registers the account and hands
// out the Google consent URL; repeat contact reports the current link state.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	chatUserID := strconv.FormatInt(msg.Chat.ID, 10)

	account, err := b.accounts.FindByChatID(chatUserID)
	if errors.Is(err, store.ErrNotFound) {
		account, err = b.accounts.Create(chatUserID)
		if err != nil {
			b.logger.Error("failed to create account", "chat_user_id", chatUserID, "error", err)
			b.reply(ctx, msg.Chat.ID, "登録に失敗しました。しばらくしてからもう一度お試しください。")
			return
		}

		b.reply(ctx, msg.Chat.ID,
			"はじめまして！Gmail の新着メールをお知らせする「メル通知」です。\n"+
				"通知を始めるには、以下のURLからGoogle認証をお願いします：\n"+
				b.oauth.AuthURL(account.LinkState))
		return
	}
	if err != nil {
		b.logger.Error("failed to look up account", "chat_user_id", chatUserID, "error", err)
		b.reply(ctx, msg.Chat.ID, "エラーが発生しました。しばらくしてからもう一度お試しください。")
		return
	}

	if account.Ready() {
		b.reply(ctx, msg.Chat.ID,
			"すでにGoogle認証済みです。新着メールがあれば自動でお知らせします。\n"+
				"/status で現在の状態を確認できます。")
		return
	}

	b.reply(ctx, msg.Chat.ID,
		"Google認証がまだ完了していません。以下のURLから認証をお願いします：\n"+
			b.oauth.AuthURL(account.LinkState))
}

// handleStatus handles /status
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	chatUserID := strconv.FormatInt(msg.Chat.ID, 10)

	account, err := b.accounts.FindByChatID(chatUserID)
	if errors.Is(err, store.ErrNotFound) {
		b.reply(ctx, msg.Chat.ID, "まだ登録がありません。/start から始めてください。")
		return
	}
	if err != nil {
		b.logger.Error("failed to look up account", "chat_user_id", chatUserID, "error", err)
		b.reply(ctx, msg.Chat.ID, "エラーが発生しました。しばらくしてからもう一度お試しください。")
		return
	}

	if !account.Ready() {
		b.reply(ctx, msg.Chat.ID,
			"Google認証が未完了です。/start で認証URLを取得してください。")
		return
	}

	count, err := b.quota.Count(chatUserID)
	if err != nil {
		b.logger.Error("failed to read notification count", "chat_user_id", chatUserID, "error", err)
		b.reply(ctx, msg.Chat.ID, "エラーが発生しました。しばらくしてからもう一度お試しください。")
		return
	}

	b.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"連携中のメールアドレス: %s\n通知回数: %d/%d回",
		account.EmailAddress, count, b.limit))
}

// handleCheck handles /check: runs one poll cycle synchronously
func (b *Bot) handleCheck(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	if b.trigger == nil {
		b.reply(ctx, msg.Chat.ID, "メールチェックは現在利用できません。")
		return
	}

	b.reply(ctx, msg.Chat.ID, "メールを確認しています...")

	err := b.trigger(ctx)
	switch {
	case errors.Is(err, checker.ErrCycleRunning):
		b.reply(ctx, msg.Chat.ID, "メールチェックは既に実行中です。少し待ってからもう一度お試しください。")
	case err != nil:
		b.logger.Error("manual check failed", "error", err)
		b.reply(ctx, msg.Chat.ID, "メールチェックに失敗しました。")
	default:
		b.reply(ctx, msg.Chat.ID, "メールチェックが完了しました。新着があれば通知が届きます。")
	}
}

// handleHelp handles /help
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	b.reply(ctx, msg.Chat.ID,
		"「メル通知」- Gmail 新着メール通知ボット\n\n"+
			"/start - Google認証を始める\n"+
			"/status - 連携状態と通知回数を確認\n"+
			"/check - 今すぐメールをチェック")
}

// defaultHandler handles everything that is not a registered command
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	if strings.Contains(msg.Text, triggerPhrase) {
		b.handleCheck(ctx, tgBot, update)
		return
	}

	chatUserID := strconv.FormatInt(msg.Chat.ID, 10)
	if _, err := b.accounts.FindByChatID(chatUserID); errors.Is(err, store.ErrNotFound) {
		// Unseen chat identity: register right away, same as /start.
		b.handleStart(ctx, tgBot, update)
		return
	}

	b.reply(ctx, msg.Chat.ID, "/start で連携、/status で状態確認、/check で手動チェックができます。")
}
