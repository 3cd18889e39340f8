package checker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haruo/melnotify/internal/mailbox"
	"github.com/haruo/melnotify/internal/store"
	"github.com/haruo/melnotify/pkg/models"
)

type fakePoller struct {
	results map[string]*mailbox.PollResult
	errs    map[string]error
	started chan struct{} // closed when Poll is first entered
	block   chan struct{} // when set, Poll waits until the channel is closed
	polled  []string
}

func (p *fakePoller) Poll(ctx context.Context, account *models.UserAccount, notifyCount int) (*mailbox.PollResult, error) {
	if p.started != nil {
		close(p.started)
		p.started = nil
	}
	if p.block != nil {
		<-p.block
	}
	p.polled = append(p.polled, account.ChatUserID)
	if err := p.errs[account.ChatUserID]; err != nil {
		return nil, err
	}
	if result := p.results[account.ChatUserID]; result != nil {
		return result, nil
	}
	return &mailbox.PollResult{Status: mailbox.StatusNoNewMail}, nil
}

type fakeDispatcher struct {
	err    error
	pushed map[string]string
}

func (d *fakeDispatcher) Push(ctx context.Context, chatUserID, text string) error {
	if d.err != nil {
		return d.err
	}
	if d.pushed == nil {
		d.pushed = make(map[string]string)
	}
	d.pushed[chatUserID] = text
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newChecker(t *testing.T, poller Poller, dispatcher Dispatcher, accounts []*models.UserAccount) (*Checker, *store.QuotaStore) {
	t.Helper()
	dir := t.TempDir()

	accountStore := store.NewAccountStore(dir)
	require.NoError(t, accountStore.Save(accounts))
	quota := store.NewQuotaStore(dir)

	return New(Deps{
		Accounts:    accountStore,
		Quota:       quota,
		Poller:      poller,
		Dispatcher:  dispatcher,
		NotifyLimit: 30,
		Logger:      testLogger(),
	}), quota
}

func account(chatUserID string) *models.UserAccount {
	return &models.UserAccount{
		ChatUserID:   chatUserID,
		LinkState:    "state-" + chatUserID,
		EmailAddress: chatUserID + "@gmail.com",
		MailServer:   "imap.gmail.com",
		MailPort:     993,
		AccessToken:  "at",
		RefreshToken: "rt",
	}
}

func delivered(n int) *mailbox.PollResult {
	summaries := make([]mailbox.Summary, n)
	for i := range summaries {
		summaries[i] = mailbox.Summary{From: "a@example.com", Subject: "hello"}
	}
	return &mailbox.PollResult{Status: mailbox.StatusDelivered, Summaries: summaries}
}

func TestRunCycleDeliversAndIncrementsQuota(t *testing.T) {
	poller := &fakePoller{results: map[string]*mailbox.PollResult{"u1": delivered(2)}}
	dispatcher := &fakeDispatcher{}
	c, quota := newChecker(t, poller, dispatcher, []*models.UserAccount{account("u1")})

	require.NoError(t, c.RunCycle(context.Background()))

	require.Contains(t, dispatcher.pushed, "u1")
	assert.Contains(t, dispatcher.pushed["u1"], "【通知回数】1/30回")

	count, err := quota.Count("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCycleIsolatesFailingAccount(t *testing.T) {
	poller := &fakePoller{
		errs:    map[string]error{"u1": errors.New("connection refused")},
		results: map[string]*mailbox.PollResult{"u2": delivered(1)},
	}
	dispatcher := &fakeDispatcher{}
	c, quota := newChecker(t, poller, dispatcher, []*models.UserAccount{account("u1"), account("u2")})

	require.NoError(t, c.RunCycle(context.Background()))

	assert.Equal(t, []string{"u1", "u2"}, poller.polled, "failure on u1 must not stop u2")
	assert.NotContains(t, dispatcher.pushed, "u1")
	assert.Contains(t, dispatcher.pushed, "u2")

	count, err := quota.Count("u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCycleNoQuotaOnDispatchFailure(t *testing.T) {
	poller := &fakePoller{results: map[string]*mailbox.PollResult{"u1": delivered(1)}}
	dispatcher := &fakeDispatcher{err: errors.New("push rejected")}
	c, quota := newChecker(t, poller, dispatcher, []*models.UserAccount{account("u1")})

	require.NoError(t, c.RunCycle(context.Background()))

	count, err := quota.Count("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "failed dispatch must not consume quota")
}

func TestRunCycleNoDispatchWithoutNewMail(t *testing.T) {
	poller := &fakePoller{results: map[string]*mailbox.PollResult{
		"u1": {Status: mailbox.StatusNoNewMail},
		"u2": {Status: mailbox.StatusAuthFailed},
		"u3": {Status: mailbox.StatusSkipped, SkipReason: mailbox.SkipNotReady},
	}}
	dispatcher := &fakeDispatcher{}
	c, quota := newChecker(t, poller, dispatcher,
		[]*models.UserAccount{account("u1"), account("u2"), account("u3")})

	require.NoError(t, c.RunCycle(context.Background()))

	assert.Empty(t, dispatcher.pushed)
	counts, err := quota.Load()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestRunCycleSingleFlight(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	poller := &fakePoller{started: started, block: block}
	c, _ := newChecker(t, poller, &fakeDispatcher{}, []*models.UserAccount{account("u1")})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.RunCycle(context.Background())
	}()

	// Once the first cycle is inside Poll it holds the lock; a second
	// trigger must be rejected instead of queued.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first cycle never started polling")
	}
	assert.ErrorIs(t, c.RunCycle(context.Background()), ErrCycleRunning)

	close(block)
	require.NoError(t, <-firstDone)
}

func TestRunCycleCancellation(t *testing.T) {
	poller := &fakePoller{}
	c, _ := newChecker(t, poller, &fakeDispatcher{},
		[]*models.UserAccount{account("u1"), account("u2")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, poller.polled)
}
