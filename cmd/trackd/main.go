// Command trackd is the website change tracking daemon.
//
// Usage:
//
//	trackd -config trackd.yaml
//	TRACKD_DB_PATH=/data/trackd.db TRACKD_OWNER_ID=42 trackd
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/trackd"
	"github.com/hazyhaar/trackd/internal/api"
	"github.com/hazyhaar/trackd/internal/browser"
	"github.com/hazyhaar/trackd/internal/fetch"
	"github.com/hazyhaar/trackd/internal/notify"
	"github.com/hazyhaar/trackd/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to trackd.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("trackd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg, err := trackd.LoadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.OwnerID > 0 {
		if err := st.SeedOwner(ctx, cfg.OwnerID); err != nil {
			return err
		}
	} else {
		logger.Warn("trackd: no owner_id configured, control API will reject everyone")
	}

	pool := browser.NewPool(browser.Config{
		PoolSize:        cfg.BrowserPoolSize,
		RecycleInterval: cfg.BrowserRecycleInterval,
		RemoteURL:       cfg.BrowserRemoteURL,
		Logger:          logger,
	})
	defer pool.Close()

	static := fetch.NewStatic(fetch.StaticConfig{Timeout: cfg.FetchTimeout}, logger)
	render := fetch.NewRender(pool, fetch.RenderConfig{Timeout: cfg.RenderTimeout}, logger)
	fetcher := fetch.NewDispatcher(static, render)

	backends := []notify.Notifier{notify.NewStdout(nil)}
	if cfg.WebhookURL != "" {
		backends = append(backends, notify.NewWebhook(cfg.WebhookURL, notify.WithWebhookLogger(logger)))
	}
	notifier := notify.NewRouter(logger, backends...)
	defer notifier.Close()

	svc := trackd.New(st, fetcher, notifier, cfg, logger)
	svc.Start(ctx)

	handler := api.New(svc, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trackd: listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("trackd: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
