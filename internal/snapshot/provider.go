// Package snapshot acquires page screenshots through headless Chrome. The
// browser is launched once per run; each capture opens a fresh stealth page,
// navigates with a bounded load timeout, and screenshots the viewport.
// All acquisition failures degrade to an empty capture; cleanup failures on
// the release path are logged and never propagated.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Theme selects the emulated prefers-color-scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Config configures the snapshot provider.
type Config struct {
	// URL is the page to capture.
	URL string

	// Width and Height set the emulated viewport. Default: 960x720.
	Width  int
	Height int

	// Theme is the emulated color scheme. Default: light.
	Theme Theme

	// LoadTimeout bounds navigation and page load. Default: 30s.
	LoadTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Width <= 0 {
		c.Width = 960
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.Theme == "" {
		c.Theme = ThemeLight
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Provider captures screenshots of a single target URL.
type Provider struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewProvider creates a provider. Call Start to launch Chrome.
func NewProvider(cfg Config) *Provider {
	cfg.defaults()
	return &Provider{cfg: cfg}
}

// Start launches a local headless Chrome and connects to it.
func (p *Provider) Start(ctx context.Context) error {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")

	wsURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("snapshot: launch: %w", err)
	}
	p.lnch = l

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("snapshot: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		p.cfg.Logger.Warn("snapshot: ignore cert errors failed", "error", err)
	}

	p.browser = b
	p.cfg.Logger.Info("snapshot: launched chrome", "url", p.cfg.URL,
		"viewport", fmt.Sprintf("%dx%d", p.cfg.Width, p.cfg.Height), "theme", p.cfg.Theme)
	return nil
}

// Capture renders the target page and returns PNG bytes. On any failure it
// returns nil after logging; the caller treats that as an empty capture.
func (p *Provider) Capture(ctx context.Context) []byte {
	log := p.cfg.Logger
	if p.browser == nil {
		log.Error("snapshot: capture before Start")
		return nil
	}

	page, err := stealth.Page(p.browser)
	if err != nil {
		log.Warn("snapshot: create page failed", "error", err)
		return nil
	}
	defer func() {
		// Close failures must never surface as capture failures.
		if err := page.Close(); err != nil {
			log.Debug("snapshot: page close failed", "error", err)
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.LoadTimeout)
	defer cancel()
	page = page.Context(navCtx)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.cfg.Width,
		Height:            p.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("snapshot: set viewport failed", "error", err)
		return nil
	}

	err = proto.EmulationSetEmulatedMedia{
		Features: []*proto.EmulationMediaFeature{
			{Name: "prefers-color-scheme", Value: string(p.cfg.Theme)},
		},
	}.Call(page)
	if err != nil {
		log.Warn("snapshot: emulate color scheme failed", "error", err)
	}

	if err := page.Navigate(p.cfg.URL); err != nil {
		log.Warn("snapshot: navigate failed", "url", p.cfg.URL, "error", err)
		return nil
	}
	if err := page.WaitLoad(); err != nil {
		// Slow pages still get screenshotted with whatever has rendered.
		log.Warn("snapshot: wait load timeout", "url", p.cfg.URL, "error", err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		log.Warn("snapshot: screenshot failed", "url", p.cfg.URL, "error", err)
		return nil
	}
	return data
}

// Close shuts down Chrome. Errors are logged, not returned to the loop.
func (p *Provider) Close() {
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			p.cfg.Logger.Debug("snapshot: browser close failed", "error", err)
		}
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
}
