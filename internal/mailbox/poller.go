package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haruo/melnotify/pkg/models"
)

// errAuthRejected marks a login the server refused even after one token
// refresh attempt. It stays inside this package; callers see StatusAuthFailed.
var errAuthRejected = errors.New("authentication rejected")

// maxShown is how many message summaries a single notification carries.
// Anything beyond it is reported as an overflow count only.
const maxShown = 5

// PollStatus classifies the outcome of polling one account
type PollStatus int

const (
	StatusSkipped PollStatus = iota
	StatusNoNewMail
	StatusDelivered
	StatusAuthFailed
)

// SkipReason says why an account was skipped without contacting the server
type SkipReason string

const (
	SkipNotReady       SkipReason = "not-ready"
	SkipQuotaExhausted SkipReason = "quota-exhausted"
)

// PollResult is the outcome of polling one account's mailbox
type PollResult struct {
	Status     PollStatus
	SkipReason SkipReason
	Summaries  []Summary
	Overflow   int
}

// Session is one authenticated conversation with a mail server
type Session interface {
	Authenticate(email, accessToken string) error
	SearchUnseen() ([]uint32, error)
	FetchSummaries(seqNums []uint32) ([]Summary, error)
	MarkSeen(seqNums []uint32) error
	Logout() error
}

// DialFunc opens a connection to a mail server at addr (host:port)
type DialFunc func(ctx context.Context, addr string) (Session, error)

// TokenRefresher mints a new access token from a refresh token
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// TokenSaver persists a refreshed access token
type TokenSaver interface {
	UpdateAccessToken(chatUserID, accessToken string) error
}

// Poller checks one account's inbox for unseen mail. Expired access tokens
// are not refreshed ahead of time; an authentication failure triggers one
// refresh-and-retry, then the account is skipped until the next cycle.
type Poller struct {
	dial      DialFunc
	refresher TokenRefresher
	tokens    TokenSaver
	limit     int
	logger    *slog.Logger
}

// NewPoller creates a poller with a lifetime notification limit per account
func NewPoller(dial DialFunc, refresher TokenRefresher, tokens TokenSaver, limit int, logger *slog.Logger) *Poller {
	return &Poller{
		dial:      dial,
		refresher: refresher,
		tokens:    tokens,
		limit:     limit,
		logger:    logger.With("component", "poller"),
	}
}

// Poll checks the account's inbox once. Unseen messages are summarized (up
// to maxShown of them) and every unseen message is marked \Seen. Transport
// failures (connect, search, fetch, store) come back as errors; everything
// else is expressed in the PollResult.
func (p *Poller) Poll(ctx context.Context, account *models.UserAccount, notifyCount int) (*PollResult, error) {
	log := p.logger.With("chat_user_id", account.ChatUserID)

	if !account.Ready() {
		log.Warn("account missing required fields, skipping")
		return &PollResult{Status: StatusSkipped, SkipReason: SkipNotReady}, nil
	}

	if notifyCount >= p.limit {
		log.Info("notification limit reached, skipping", "count", notifyCount, "limit", p.limit)
		return &PollResult{Status: StatusSkipped, SkipReason: SkipQuotaExhausted}, nil
	}

	sess, err := p.connect(ctx, account)
	if errors.Is(err, errAuthRejected) {
		return &PollResult{Status: StatusAuthFailed}, nil
	}
	if err != nil {
		return nil, err
	}
	defer sess.Logout()

	unseen, err := sess.SearchUnseen()
	if err != nil {
		return nil, err
	}
	if len(unseen) == 0 {
		log.Debug("no unseen messages")
		return &PollResult{Status: StatusNoNewMail}, nil
	}

	shown := unseen
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}

	summaries, err := sess.FetchSummaries(shown)
	if err != nil {
		return nil, err
	}

	// Every unseen message is marked seen, including the ones beyond
	// maxShown whose content was never fetched.
	if err := sess.MarkSeen(unseen); err != nil {
		return nil, err
	}

	overflow := len(unseen) - maxShown
	if overflow < 0 {
		overflow = 0
	}

	log.Info("unseen mail found", "total", len(unseen), "shown", len(summaries), "overflow", overflow)
	return &PollResult{Status: StatusDelivered, Summaries: summaries, Overflow: overflow}, nil
}

// connect dials and authenticates, refreshing the access token and retrying
// once if the first login is rejected. Returns errAuthRejected when the
// account could not be authenticated at all.
func (p *Poller) connect(ctx context.Context, account *models.UserAccount) (Session, error) {
	log := p.logger.With("chat_user_id", account.ChatUserID)

	sess, err := p.dial(ctx, account.Addr())
	if err != nil {
		return nil, err
	}

	authErr := sess.Authenticate(account.EmailAddress, account.AccessToken)
	if authErr == nil {
		return sess, nil
	}
	sess.Logout()
	log.Info("authentication rejected, refreshing access token", "error", authErr)

	newToken, err := p.refresher.Refresh(ctx, account.RefreshToken)
	if err != nil {
		log.Warn("token refresh failed", "error", err)
		return nil, errAuthRejected
	}

	// Persist the fresh token before retrying so it survives even if the
	// retry fails for unrelated reasons.
	if err := p.tokens.UpdateAccessToken(account.ChatUserID, newToken); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	account.AccessToken = newToken

	sess, err = p.dial(ctx, account.Addr())
	if err != nil {
		return nil, err
	}
	if err := sess.Authenticate(account.EmailAddress, newToken); err != nil {
		sess.Logout()
		log.Warn("authentication failed after refresh", "error", err)
		return nil, errAuthRejected
	}
	return sess, nil
}
