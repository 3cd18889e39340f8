package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"

	"github.com/haruo/melnotify/internal/checker"
	"github.com/haruo/melnotify/internal/config"
	"github.com/haruo/melnotify/internal/mailbox"
	"github.com/haruo/melnotify/internal/oauth"
	"github.com/haruo/melnotify/internal/server"
	"github.com/haruo/melnotify/internal/store"
	"github.com/haruo/melnotify/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting melnotify")

	// Stores
	accounts := store.NewAccountStore(cfg.DataDir)
	quota := store.NewQuotaStore(cfg.DataDir)

	// OAuth client
	oauthClient := oauth.NewClient(oauth.Options{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Timeout:      cfg.HTTPTimeout,
	})

	// Mailbox poller
	poller := mailbox.NewPoller(
		mailbox.Dialer(cfg.IMAPDialTimeout, logger),
		oauthClient,
		accounts,
		cfg.NotifyLimit,
		logger,
	)

	// Telegram bot
	tgBot, err := telegram.NewBot(telegram.BotDeps{
		Token:       cfg.TelegramToken,
		Accounts:    accounts,
		Quota:       quota,
		OAuth:       oauthClient,
		NotifyLimit: cfg.NotifyLimit,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Checker, dispatching through the bot
	chk := checker.New(checker.Deps{
		Accounts:    accounts,
		Quota:       quota,
		Poller:      poller,
		Dispatcher:  tgBot,
		NotifyLimit: cfg.NotifyLimit,
		Logger:      logger,
	})
	tgBot.SetTrigger(chk.RunCycle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// HTTP surface: health, OAuth callback, manual trigger
	router := server.NewRouter(server.Deps{
		Accounts: accounts,
		Exchange: oauthClient.ExchangeAndIdentify,
		Checker:  chk,
		Logger:   logger,
	})
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Poll scheduler
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every "+cfg.PollInterval.String(), func() {
		if err := chk.RunCycle(ctx); err != nil && !errors.Is(err, checker.ErrCycleRunning) {
			logger.Error("scheduled poll cycle failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to schedule poll cycle", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("poll scheduler started", "interval", cfg.PollInterval)

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)

		cronCtx := scheduler.Stop()
		<-cronCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}

		cancel()
	}()

	// Start bot (blocks until ctx is cancelled)
	logger.Info("bot is running, press Ctrl+C to stop")
	tgBot.Start(ctx)

	logger.Info("melnotify stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
