package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haruo/melnotify/internal/mailbox"
	"github.com/haruo/melnotify/internal/notify"
	"github.com/haruo/melnotify/internal/store"
	"github.com/haruo/melnotify/pkg/models"
)

// ErrCycleRunning is returned when a cycle trigger arrives while a cycle is
// already in flight. Triggers never queue; the caller just tries again later.
var ErrCycleRunning = errors.New("poll cycle already running")

// defaultAccountTimeout bounds the time one account may spend on network
// I/O, so a single unresponsive mail server cannot stall the whole cycle.
const defaultAccountTimeout = 2 * time.Minute

// Poller polls one account's mailbox
type Poller interface {
	Poll(ctx context.Context, account *models.UserAccount, notifyCount int) (*mailbox.PollResult, error)
}

// Dispatcher delivers a notification to a chat identity
type Dispatcher interface {
	Push(ctx context.Context, chatUserID, text string) error
}

// Checker runs the polling cycle over all linked accounts
type Checker struct {
	accounts       *store.AccountStore
	quota          *store.QuotaStore
	poller         Poller
	dispatcher     Dispatcher
	limit          int
	accountTimeout time.Duration
	logger         *slog.Logger

	mu sync.Mutex // single-flight guard around RunCycle
}

// Deps dependencies for creating a checker
type Deps struct {
	Accounts       *store.AccountStore
	Quota          *store.QuotaStore
	Poller         Poller
	Dispatcher     Dispatcher
	NotifyLimit    int
	AccountTimeout time.Duration
	Logger         *slog.Logger
}

// New creates a checker
func New(deps Deps) *Checker {
	timeout := deps.AccountTimeout
	if timeout == 0 {
		timeout = defaultAccountTimeout
	}
	return &Checker{
		accounts:       deps.Accounts,
		quota:          deps.Quota,
		poller:         deps.Poller,
		dispatcher:     deps.Dispatcher,
		limit:          deps.NotifyLimit,
		accountTimeout: timeout,
		logger:         deps.Logger.With("component", "checker"),
	}
}

// RunCycle polls every linked account once, sequentially. A failure on one
// account is logged and never aborts the cycle. Overlapping invocations are
// rejected with ErrCycleRunning so concurrent triggers cannot race the
// full-document store writes.
func (c *Checker) RunCycle(ctx context.Context) error {
	if !c.mu.TryLock() {
		c.logger.Info("poll cycle already running, ignoring trigger")
		return ErrCycleRunning
	}
	defer c.mu.Unlock()

	accounts, err := c.accounts.Load()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	counts, err := c.quota.Load()
	if err != nil {
		return fmt.Errorf("failed to load notification counts: %w", err)
	}

	c.logger.Info("poll cycle started", "accounts", len(accounts))
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			c.logger.Info("poll cycle cancelled")
			return ctx.Err()
		default:
		}
		c.checkAccount(ctx, account, counts[account.ChatUserID])
	}
	c.logger.Info("poll cycle finished")
	return nil
}

// checkAccount polls one account and, when new mail was found, composes and
// pushes the notification. The quota count is incremented only after the
// push succeeded, so a failed dispatch does not consume quota.
func (c *Checker) checkAccount(ctx context.Context, account *models.UserAccount, notifyCount int) {
	log := c.logger.With("chat_user_id", account.ChatUserID)

	ctx, cancel := context.WithTimeout(ctx, c.accountTimeout)
	defer cancel()

	result, err := c.poller.Poll(ctx, account, notifyCount)
	if err != nil {
		log.Error("mailbox poll failed", "error", err)
		return
	}

	switch result.Status {
	case mailbox.StatusSkipped:
		log.Debug("account skipped", "reason", result.SkipReason)
		return
	case mailbox.StatusNoNewMail:
		return
	case mailbox.StatusAuthFailed:
		log.Warn("mailbox authentication failed, will retry next cycle")
		return
	case mailbox.StatusDelivered:
	}

	text := notify.Compose(result.Summaries, result.Overflow, notifyCount+1, c.limit)
	if err := c.dispatcher.Push(ctx, account.ChatUserID, text); err != nil {
		log.Error("failed to push notification", "error", err)
		return
	}

	if _, err := c.quota.Increment(account.ChatUserID); err != nil {
		log.Error("failed to persist notification count", "error", err)
		return
	}
	log.Info("notification sent", "messages", len(result.Summaries), "overflow", result.Overflow)
}
