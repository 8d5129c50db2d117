package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wabot/pkg/browser"
	"wabot/pkg/bus"
	"wabot/pkg/config"
	"wabot/pkg/ingest"
	"wabot/pkg/notify"
	"wabot/pkg/notify/telegram"
	"wabot/pkg/reply"
	"wabot/pkg/reply/openai"
	"wabot/pkg/seen"
	"wabot/pkg/webclient"
)

// Build wires a Service from configuration: browser session, page adapter,
// seen set, responder, ingestion loop, event bus and notifiers.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	session := browser.New(cfg.Browser, log)
	client := webclient.New(session, webclient.Options{
		Selectors:        webclient.DefaultSelectors().WithOverrides(cfg.Client.Selectors),
		ReservedIdentity: cfg.Client.ReservedIdentity,
		LookupTimeout:    time.Duration(cfg.Browser.LookupTimeoutSeconds) * time.Second,
		SendInterval:     time.Duration(cfg.Poll.SendIntervalMillis) * time.Millisecond,
		Logger:           log,
	})

	set, err := newSeenSet(ctx, cfg.Dedupe, log)
	if err != nil {
		return nil, err
	}

	responder, err := NewResponder(cfg, log)
	if err != nil {
		_ = set.Close()
		return nil, err
	}

	eventBus := bus.NewMessageBus()
	loop, err := ingest.New(ingest.Options{
		Page:          client,
		Seen:          set,
		Responder:     responder,
		Focus:         session,
		Driver:        session,
		Events:        eventBus,
		Interval:      time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
		ErrorInterval: time.Duration(cfg.Poll.ErrorIntervalSeconds) * time.Second,
		Logger:        log,
	})
	if err != nil {
		_ = set.Close()
		return nil, fmt.Errorf("initialize ingestion loop: %w", err)
	}

	var notifiers []notify.Notifier
	if cfg.Notify.Telegram.Enabled {
		n, err := telegram.New(cfg.Notify.Telegram, client, log)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("initialize telegram notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}

	return NewService(cfg.Gateway, Components{
		Browser:   session,
		Page:      client,
		Loop:      loop,
		Bus:       eventBus,
		Notifiers: notifiers,
		Closers:   []func() error{set.Close},
	}, log)
}

// NewResponder builds the configured reply responder.
func NewResponder(cfg *config.Config, log *slog.Logger) (reply.Responder, error) {
	engine, err := reply.EngineFromConfig(cfg.Reply)
	if err != nil {
		return nil, fmt.Errorf("load reply rules: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Reply.Provider)) {
	case "", "rules":
		return reply.NewRuleResponder(engine, log), nil
	case "openai":
		responder, err := openai.New(cfg, engine, log)
		if err != nil {
			return nil, fmt.Errorf("initialize openai responder: %w", err)
		}
		return responder, nil
	default:
		return nil, fmt.Errorf("unsupported reply provider %q", cfg.Reply.Provider)
	}
}

func newSeenSet(ctx context.Context, cfg config.DedupeConfig, log *slog.Logger) (*seen.Set, error) {
	opts := seen.Options{Ceiling: cfg.Ceiling, Retain: cfg.Retain, Logger: log}

	if path := strings.TrimSpace(cfg.StorePath); path != "" {
		store, err := seen.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open seen store: %w", err)
		}
		opts.Store = store
	}

	set, err := seen.New(ctx, opts)
	if err != nil {
		if opts.Store != nil {
			_ = opts.Store.Close()
		}
		return nil, fmt.Errorf("initialize seen set: %w", err)
	}
	return set, nil
}
