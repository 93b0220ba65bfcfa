package display

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// BrowserDisplay hosts the AI surface in a dedicated Chromium page and
// implements both Context and Injector against it. Used when the automation
// session runs inside a browser rather than a raw desktop.
type BrowserDisplay struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	mu      sync.Mutex
}

// BrowserOptions configures the hosted surface.
type BrowserOptions struct {
	Headless bool
	Width    int
	Height   int
	StartURL string
}

// NewBrowserDisplay launches Chromium and opens the automation page.
func NewBrowserDisplay(opts BrowserOptions) (*BrowserDisplay, error) {
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{
			Width:  opts.Width,
			Height: opts.Height,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if opts.StartURL != "" {
		if _, err := page.Goto(opts.StartURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
		}); err != nil {
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to open start url: %w", err)
		}
	}

	return &BrowserDisplay{pw: pw, browser: browser, page: page}, nil
}

// EnsureAIDisplayContext brings the automation page to the foreground.
func (b *BrowserDisplay) EnsureAIDisplayContext(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.BringToFront()
}

// CaptureAIScreenshot writes a full-page frame to path.
func (b *BrowserDisplay) CaptureAIScreenshot(ctx context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// SwitchToUserDisplay yields the foreground. The embedder owns OS window
// stacking for a browser-hosted surface; all this adapter can do is stop
// holding the page in front, which is a no-op at the playwright level.
func (b *BrowserDisplay) SwitchToUserDisplay(ctx context.Context) error {
	return nil
}

// ScreenSize reports the live viewport size.
func (b *BrowserDisplay) ScreenSize(ctx context.Context) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := b.page.ViewportSize()
	if size == nil {
		return 0, 0, fmt.Errorf("viewport size unavailable")
	}
	return size.Width, size.Height, nil
}

// Click injects a mouse click at page coordinates.
func (b *BrowserDisplay) Click(ctx context.Context, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.Mouse().Click(float64(x), float64(y))
}

// TypeText injects text as individual keystrokes.
func (b *BrowserDisplay) TypeText(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.Keyboard().Type(text)
}

// Close tears down the browser and the playwright driver.
func (b *BrowserDisplay) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.browser.Close(); err != nil {
		b.pw.Stop()
		return err
	}
	return b.pw.Stop()
}
