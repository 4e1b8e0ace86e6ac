// Package cdpdom implements the dom interfaces over a live Chrome page
// driven through go-rod. Mutation observation, shadow-root interception,
// frame load events, and idle scheduling all flow through one injected
// script and one CDP binding, the same capture pattern as a DOM
// observation daemon: JS reports, Go reacts.
package cdpdom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome.
	RemoteURL string
	// Headful launches a visible browser (local launches only).
	Headful bool
	Logger  *slog.Logger
}

// Browser owns the Chrome connection for one or more patched pages.
type Browser struct {
	b      *rod.Browser
	lnch   *launcher.Launcher
	logger *slog.Logger
}

// Launch connects to or starts Chrome.
func Launch(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var (
		b    *rod.Browser
		lnch *launcher.Launcher
	)
	if cfg.RemoteURL != "" {
		b = rod.New().Context(ctx).ControlURL(cfg.RemoteURL)
	} else {
		lnch = launcher.New().Headless(!cfg.Headful)
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("cdpdom: launch chrome: %w", err)
		}
		b = rod.New().Context(ctx).ControlURL(u)
	}
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("cdpdom: connect: %w", err)
	}

	cfg.Logger.Info("cdpdom: browser connected", "remote", cfg.RemoteURL != "")
	return &Browser{b: b, lnch: lnch, logger: cfg.Logger}, nil
}

// OpenPage opens a stealth tab, navigates, waits for load, and wraps the
// page as a Document.
func (br *Browser) OpenPage(ctx context.Context, pageURL string) (*Document, error) {
	page, err := stealth.Page(br.b)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("cdpdom: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		br.logger.Warn("cdpdom: wait load timeout", "url", pageURL, "error", err)
	}

	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}
	return newDocument(ctx, page, host, br.logger), nil
}

// Close shuts the browser down. Local launches are also killed.
func (br *Browser) Close() error {
	err := br.b.Close()
	if br.lnch != nil {
		br.lnch.Cleanup()
	}
	return err
}
