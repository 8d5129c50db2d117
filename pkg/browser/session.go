// Package browser owns the single Chromium instance that shows the messaging
// web client and exposes the narrow set of page operations the rest of the
// bot needs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"wabot/pkg/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultLookupTimeout     = 10 * time.Second
	screenshotHeightBuffer   = 200
)

var (
	// ErrNotStarted is returned by page operations before Start or after Close.
	ErrNotStarted = errors.New("browser session not started")
	// ErrNotFound is returned when a waited-for element never rendered.
	ErrNotFound = errors.New("element not found")
)

// Session is the handle to one running browser showing the target page.
//
// Page state may be read concurrently. Anything that changes which
// conversation is focused must hold the focus lock (Lock/Unlock).
type Session struct {
	cfg config.BrowserConfig
	log *slog.Logger

	// focus is a one-slot semaphore so waiters can give up on ctx.
	focus chan struct{}

	mu       sync.RWMutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// New creates an unstarted session.
func New(cfg config.BrowserConfig, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		cfg:   cfg,
		log:   log.With("component", "browser.session"),
		focus: make(chan struct{}, 1),
	}
}

// Start launches Chromium, opens the configured URL and applies viewport and
// user agent settings. Calling Start on a started session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return nil
	}

	return s.startLocked(ctx)
}

// Restart tears the browser down and starts a fresh one.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Warn("Restarting browser session")
	s.closeLocked()
	return s.startLocked(ctx)
}

// Healthy reports whether the browser process still answers CDP calls.
func (s *Session) Healthy(ctx context.Context) error {
	s.mu.RLock()
	browser := s.browser
	s.mu.RUnlock()

	if browser == nil {
		return ErrNotStarted
	}

	if _, err := browser.Context(ctx).Version(); err != nil {
		return fmt.Errorf("browser unreachable: %w", err)
	}
	return nil
}

// Version returns the browser product string, e.g. "HeadlessChrome/137.0.0.0".
func (s *Session) Version(ctx context.Context) (string, error) {
	s.mu.RLock()
	browser := s.browser
	s.mu.RUnlock()

	if browser == nil {
		return "", ErrNotStarted
	}

	version, err := browser.Context(ctx).Version()
	if err != nil {
		return "", fmt.Errorf("browser version: %w", err)
	}
	return version.Product, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

// Lock acquires the focus lock.
func (s *Session) Lock() { s.focus <- struct{}{} }

// Unlock releases the focus lock.
func (s *Session) Unlock() { <-s.focus }

// lockFocus acquires the focus lock unless ctx ends first.
func (s *Session) lockFocus(ctx context.Context) error {
	select {
	case s.focus <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Find looks selector up once without waiting.
func (s *Session) Find(ctx context.Context, selector string) (Node, bool, error) {
	page, err := s.current()
	if err != nil {
		return nil, false, err
	}

	has, el, err := page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("find %q: %w", selector, err)
	}
	if !has {
		return nil, false, nil
	}
	return &rodNode{el: el}, true, nil
}

// FindAll returns every element matching selector, in document order.
func (s *Session) FindAll(ctx context.Context, selector string) ([]Node, error) {
	page, err := s.current()
	if err != nil {
		return nil, err
	}

	elements, err := page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %q: %w", selector, err)
	}
	return wrapElements(elements), nil
}

// Wait polls for selector until it renders or timeout elapses. A zero
// timeout uses the configured lookup timeout. Expiry yields ErrNotFound.
func (s *Session) Wait(ctx context.Context, selector string, timeout time.Duration) (Node, error) {
	page, err := s.current()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.lookupTimeout()
	}

	el, err := page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
		}
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	return &rodNode{el: el.CancelTimeout()}, nil
}

// EvalInt runs a JS function definition on the page and returns its integer result.
func (s *Session) EvalInt(ctx context.Context, js string, args ...any) (int, error) {
	page, err := s.current()
	if err != nil {
		return 0, err
	}

	res, err := page.Context(ctx).Eval(js, args...)
	if err != nil {
		return 0, fmt.Errorf("eval: %w", err)
	}
	return res.Value.Int(), nil
}

// Screenshot captures the page as PNG. A full-page capture grows the viewport
// to the document height first, then restores the configured size. It holds
// the focus lock while the viewport is resized.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if fullPage {
		if err := s.lockFocus(ctx); err != nil {
			return nil, fmt.Errorf("wait for focus: %w", err)
		}
		defer s.Unlock()
	}

	page, err := s.current()
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	req := &proto.PageCaptureScreenshot{
		Format:      proto.PageCaptureScreenshotFormatPng,
		FromSurface: true,
	}
	if !fullPage {
		data, err := page.Screenshot(false, req)
		if err != nil {
			return nil, fmt.Errorf("capture screenshot: %w", err)
		}
		return data, nil
	}

	height, err := s.EvalInt(ctx, documentHeightJS)
	if err != nil {
		return nil, fmt.Errorf("measure document height: %w", err)
	}
	width, err := s.EvalInt(ctx, `() => window.innerWidth`)
	if err != nil {
		return nil, fmt.Errorf("measure viewport width: %w", err)
	}
	height += screenshotHeightBuffer

	if err := setViewport(page, width, height); err != nil {
		return nil, err
	}
	defer func() {
		if err := setViewport(page, s.cfg.WindowWidth, s.cfg.WindowHeight); err != nil {
			s.log.Debug("Failed to restore viewport", "error", err)
		}
	}()

	if settle := time.Duration(s.cfg.ScreenshotSettleMillis) * time.Millisecond; settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settle):
		}
	}

	req.CaptureBeyondViewport = true
	data, err := page.Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	s.log.Info("Screenshot captured", "width", width, "height", height)
	return data, nil
}

const documentHeightJS = `() => Math.max(
	document.body.scrollHeight,
	document.body.offsetHeight,
	document.documentElement.clientHeight,
	document.documentElement.scrollHeight,
	document.documentElement.offsetHeight
)`

func (s *Session) current() (*rod.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.page == nil {
		return nil, ErrNotStarted
	}
	return s.page, nil
}

// startLocked launches and connects. Caller must hold mu.
func (s *Session) startLocked(ctx context.Context) error {
	l := s.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	// The browser outlives ctx so Close can still reach it after a shutdown
	// signal; ctx only bounds the initial navigation.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("create page: %w", err)
	}

	if err := setViewport(page, s.cfg.WindowWidth, s.cfg.WindowHeight); err != nil {
		s.log.Warn("Failed to set viewport", "error", err)
	}
	if ua := strings.TrimSpace(s.cfg.UserAgent); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			s.log.Warn("Failed to set user agent", "error", err)
		}
	}

	s.launcher = l
	s.browser = browser
	s.page = page

	if url := strings.TrimSpace(s.cfg.URL); url != "" {
		if err := page.Context(ctx).Timeout(s.navigationTimeout()).Navigate(url); err != nil {
			s.closeLocked()
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
	}

	s.log.Info("Browser session started", "url", s.cfg.URL, "headless", s.cfg.Headless)
	return nil
}

// closeLocked releases the browser. Caller must hold mu.
func (s *Session) closeLocked() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		if strings.TrimSpace(s.cfg.UserDataDir) == "" {
			s.launcher.Cleanup()
		} else {
			// Cleanup would delete the profile that holds the linked login.
			s.launcher.Kill()
		}
	}

	s.launcher = nil
	s.browser = nil
	s.page = nil
	return err
}

func (s *Session) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-gpu")).
		Set(flags.Flag("disable-software-rasterizer"))

	if bin := strings.TrimSpace(s.cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}
	if dir := strings.TrimSpace(s.cfg.UserDataDir); dir != "" {
		l = l.UserDataDir(dir)
	}
	if s.cfg.WindowWidth > 0 && s.cfg.WindowHeight > 0 {
		l = l.Set(flags.Flag("window-size"), strconv.Itoa(s.cfg.WindowWidth)+","+strconv.Itoa(s.cfg.WindowHeight))
	}
	for _, raw := range s.cfg.ExtraFlags {
		name, value, hasValue := parseFlag(raw)
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	return l
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeoutSeconds <= 0 {
		return defaultNavigationTimeout
	}
	return time.Duration(s.cfg.NavigationTimeoutSeconds) * time.Second
}

func (s *Session) lookupTimeout() time.Duration {
	if s.cfg.LookupTimeoutSeconds <= 0 {
		return defaultLookupTimeout
	}
	return time.Duration(s.cfg.LookupTimeoutSeconds) * time.Second
}

// parseFlag splits "--name=value" style launch flags.
func parseFlag(raw string) (name string, value string, hasValue bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(raw), "-")
	name, value, hasValue = strings.Cut(trimmed, "=")
	return strings.TrimSpace(name), value, hasValue
}

func setViewport(page *rod.Page, width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport %dx%d: %w", width, height, err)
	}
	return nil
}
