package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haruo/melnotify/internal/checker"
	"github.com/haruo/melnotify/internal/store"
)

// CycleRunner runs one polling cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Server is the HTTP surface: health text, the OAuth redirect callback and a
// manual poll trigger.
type Server struct {
	accounts *store.AccountStore
	exchange ExchangeFunc
	checker  CycleRunner
	logger   *slog.Logger
}

// ExchangeFunc trades an authorization code for tokens and the profile email
type ExchangeFunc func(ctx context.Context, code string) (accessToken, refreshToken string, expiry time.Time, email string, err error)

// Deps dependencies for creating a server
type Deps struct {
	Accounts *store.AccountStore
	Exchange ExchangeFunc
	Checker  CycleRunner
	Logger   *slog.Logger
}

// NewRouter builds the gin router
func NewRouter(deps Deps) *gin.Engine {
	s := &Server{
		accounts: deps.Accounts,
		exchange: deps.Exchange,
		checker:  deps.Checker,
		logger:   deps.Logger.With("component", "http_server"),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleHome)
	r.GET("/callback", s.handleOAuthCallback)
	r.GET("/check", s.handleCheck)

	return r
}

// handleHome reports that the process is alive
func (s *Server) handleHome(c *gin.Context) {
	c.String(http.StatusOK, "メル通知は正常に動作中です！")
}

// handleOAuthCallback receives the Google redirect, exchanges the code and
// completes the account link identified by the state parameter.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.String(http.StatusBadRequest, "認証に失敗しました。")
		return
	}

	accessToken, refreshToken, expiry, email, err := s.exchange(c.Request.Context(), code)
	if err != nil {
		s.logger.Error("oauth exchange failed", "error", err)
		c.String(http.StatusBadRequest, "認証に失敗しました。")
		return
	}

	err = s.accounts.UpsertTokens(state, accessToken, refreshToken, expiry, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("oauth callback with unknown link state", "state", state)
		c.String(http.StatusBadRequest, "このリンクは無効です。もう一度 /start からやり直してください。")
		return
	}
	if err != nil {
		s.logger.Error("failed to store tokens", "error", err)
		c.String(http.StatusInternalServerError, "認証情報の保存に失敗しました。")
		return
	}

	s.logger.Info("account linked", "email", email)
	c.String(http.StatusOK, "Google認証が完了しました！新着メールをチャットでお知らせします。")
}

// handleCheck runs one polling cycle synchronously
func (s *Server) handleCheck(c *gin.Context) {
	err := s.checker.RunCycle(c.Request.Context())
	switch {
	case errors.Is(err, checker.ErrCycleRunning):
		c.String(http.StatusOK, "メールチェックは既に実行中です。")
	case err != nil:
		s.logger.Error("manual check failed", "error", err)
		c.String(http.StatusInternalServerError, "メールチェックに失敗しました。")
	default:
		c.String(http.StatusOK, "メールチェックが完了しました。")
	}
}
