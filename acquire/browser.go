package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the managed Chrome instance.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// RecycleInterval is the maximum lifetime of a Chrome process before
	// Recycle restarts it. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserManager owns the Chrome lifecycle for render-strategy sources:
// launch, stealth tab creation, recycling between long runs, shutdown.
type BrowserManager struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// NewBrowserManager creates a manager. Chrome is launched lazily on the
// first StealthPage call.
func NewBrowserManager(cfg BrowserConfig) *BrowserManager {
	cfg.defaults()
	return &BrowserManager{cfg: cfg}
}

// StealthPage returns a fresh stealth tab, launching or recycling Chrome
// as needed. The caller closes the page.
func (m *BrowserManager) StealthPage(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil && time.Since(m.startAt) > m.cfg.RecycleInterval {
		m.cfg.Logger.Info("browser: recycle interval reached", "uptime", time.Since(m.startAt))
		m.cleanupLocked()
	}
	if m.browser == nil {
		if err := m.launchLocked(ctx); err != nil {
			return nil, err
		}
	}

	page, err := stealth.Page(m.browser)
	if err != nil {
		// A dead Chrome shows up here first; relaunch once.
		m.cfg.Logger.Warn("browser: tab creation failed, relaunching", "error", err)
		m.cleanupLocked()
		if err := m.launchLocked(ctx); err != nil {
			return nil, err
		}
		page, err = stealth.Page(m.browser)
		if err != nil {
			return nil, fmt.Errorf("browser: create tab: %w", err)
		}
	}
	return page, nil
}

// Close shuts down Chrome.
func (m *BrowserManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}

func (m *BrowserManager) launchLocked(_ context.Context) error {
	log := m.cfg.Logger
	var wsURL string

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	m.browser = b
	m.startAt = time.Now()
	return nil
}

func (m *BrowserManager) cleanupLocked() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
