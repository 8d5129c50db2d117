// Package webclient reads and drives the messaging web client through a
// browser session: login state, the QR code, unread conversations, the
// latest message of a conversation, and the composer.
package webclient

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"wabot/pkg/browser"

	"golang.org/x/time/rate"
)

const defaultLookupTimeout = 10 * time.Second

// DOM is the subset of the browser session the adapter needs.
type DOM interface {
	Find(ctx context.Context, selector string) (browser.Node, bool, error)
	FindAll(ctx context.Context, selector string) ([]browser.Node, error)
	Wait(ctx context.Context, selector string, timeout time.Duration) (browser.Node, error)
}

// Options configures a Client.
type Options struct {
	Selectors        Selectors
	ReservedIdentity string
	LookupTimeout    time.Duration
	SendInterval     time.Duration
	Logger           *slog.Logger
}

// Client is the page-inspection adapter for one browser session.
type Client struct {
	dom           DOM
	sel           Selectors
	reserved      string
	lookupTimeout time.Duration
	limiter       *rate.Limiter
	log           *slog.Logger
}

// New builds a Client over dom. Zero-valued selectors fall back to DefaultSelectors.
func New(dom DOM, opts Options) *Client {
	sel := opts.Selectors
	if sel == (Selectors{}) {
		sel = DefaultSelectors()
	}

	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}

	limit := rate.Inf
	if opts.SendInterval > 0 {
		limit = rate.Every(opts.SendInterval)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		dom:           dom,
		sel:           sel,
		reserved:      strings.TrimSpace(opts.ReservedIdentity),
		lookupTimeout: timeout,
		limiter:       rate.NewLimiter(limit, 1),
		log:           log.With("component", "webclient"),
	}
}
