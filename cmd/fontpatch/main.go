// Command fontpatch attaches the font-patch engine to a live page and
// serves the settings panel.
//
// Usage:
//
//	fontpatch -url https://example.com                     # YAML config next to the binary
//	fontpatch -url https://example.com -db fontpatch.db    # SQLite config with external-writer watch
//	fontpatch -url https://example.com -listen :8750       # settings panel address
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kagemori/fontpatch/dom/cdpdom"
	"github.com/kagemori/fontpatch/engine"
	"github.com/kagemori/fontpatch/panel"
)

func main() {
	pageURL := flag.String("url", "", "page to attach the engine to")
	configPath := flag.String("config", "fontpatch.yaml", "path to YAML config file")
	dbPath := flag.String("db", "", "path to SQLite config store (overrides -config)")
	listen := flag.String("listen", ":8750", "settings panel listen address")
	webhookURL := flag.String("webhook", "", "POST engine events to this URL")
	remote := flag.String("remote", "", "WebSocket URL of an external Chrome (default: launch headless)")
	headful := flag.Bool("headful", false, "launch a visible browser")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *pageURL, *configPath, *dbPath, *listen, *webhookURL, *remote, *headful); err != nil {
		logger.Error("fontpatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, pageURL, configPath, dbPath, listen, webhookURL, remote string, headful bool) error {
	if pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: fontpatch -url <url> [-config <file> | -db <file>] [-listen <addr>]")
		os.Exit(1)
	}

	var (
		store engine.Store
		dbs   *engine.DBStore
	)
	if dbPath != "" {
		s, err := engine.OpenConfigDB(dbPath, logger)
		if err != nil {
			return fmt.Errorf("open config db: %w", err)
		}
		store, dbs = s, s
	} else {
		s, err := engine.OpenConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("open config file: %w", err)
		}
		store = s
	}
	defer store.Close()

	sinks := []engine.Sink{engine.NewStdoutSink(nil)}
	if webhookURL != "" {
		sinks = append(sinks, engine.NewWebhookSink(webhookURL, logger))
	}

	browser, err := cdpdom.Launch(ctx, cdpdom.BrowserConfig{
		RemoteURL: remote,
		Headful:   headful,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	doc, err := browser.OpenPage(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer doc.Close()

	eng := engine.New(engine.Params{
		Store:  store,
		Logger: logger,
		Sinks:  sinks,
	})
	eng.Attach(doc)
	defer eng.Stop()

	if dbs != nil {
		go dbs.Watch(ctx, 200*time.Millisecond, 500*time.Millisecond, eng.FullRescan)
	}

	srv := &http.Server{
		Addr:    listen,
		Handler: panel.New(eng, store, logger).Router(),
	}
	go func() {
		logger.Info("fontpatch: settings panel listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fontpatch: panel server", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return nil
}
