// Package ingest runs the polling cycle that turns unread conversations
// into replies, each physical message answered at most once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wabot/pkg/bus"
	"wabot/pkg/logger"
	"wabot/pkg/reply"
	"wabot/pkg/seen"
	"wabot/pkg/webclient"

	"github.com/google/uuid"
)

const (
	DefaultInterval      = 5 * time.Second
	DefaultErrorInterval = 10 * time.Second
)

// Page is the page-inspection surface the loop drives.
type Page interface {
	State(ctx context.Context) webclient.AuthState
	UnreadConversations(ctx context.Context) ([]webclient.Conversation, error)
	LatestMessage(ctx context.Context, conv webclient.Conversation) webclient.Extraction
	Send(ctx context.Context, text string) bool
}

// Driver is the browser process behind the page.
type Driver interface {
	Healthy(ctx context.Context) error
	Restart(ctx context.Context) error
}

// Publisher receives loop events.
type Publisher interface {
	PublishEvent(ctx context.Context, event bus.Event) bool
}

// Clock is the loop's time source.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures a Loop. Page, Seen and Responder are required.
type Options struct {
	Page      Page
	Seen      *seen.Set
	Responder reply.Responder
	// Focus serializes conversation navigation with other session users.
	Focus         sync.Locker
	Driver        Driver
	Events        Publisher
	Clock         Clock
	Interval      time.Duration
	ErrorInterval time.Duration
	Logger        *slog.Logger
}

type Loop struct {
	page          Page
	seen          *seen.Set
	responder     reply.Responder
	focus         sync.Locker
	driver        Driver
	events        Publisher
	clock         Clock
	interval      time.Duration
	errorInterval time.Duration
	log           *slog.Logger

	running atomic.Bool

	mu         sync.RWMutex
	lastState  webclient.AuthState
	lastReport Report
	lastErr    error
	cycles     uint64
}

func New(opts Options) (*Loop, error) {
	if opts.Page == nil {
		return nil, errors.New("page is required")
	}
	if opts.Seen == nil {
		return nil, errors.New("seen set is required")
	}
	if opts.Responder == nil {
		return nil, errors.New("responder is required")
	}

	l := &Loop{
		page:          opts.Page,
		seen:          opts.Seen,
		responder:     opts.Responder,
		focus:         opts.Focus,
		driver:        opts.Driver,
		events:        opts.Events,
		clock:         opts.Clock,
		interval:      opts.Interval,
		errorInterval: opts.ErrorInterval,
		log:           opts.Logger,
		lastState:     webclient.StateIndeterminate,
	}
	if l.focus == nil {
		l.focus = &sync.Mutex{}
	}
	if l.clock == nil {
		l.clock = systemClock{}
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}
	if l.errorInterval <= 0 {
		l.errorInterval = 2 * l.interval
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With("component", "ingest")

	return l, nil
}

// Run polls until ctx is done. Cycle failures are logged and followed by the
// error interval; they never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop already running")
	}
	defer l.running.Store(false)

	l.log.Info("Ingestion loop started", "interval", l.interval, "error_interval", l.errorInterval)
	defer l.log.Info("Ingestion loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		wait := l.interval
		if _, err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait = l.errorInterval
			l.handleFailure(ctx, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(wait):
		}
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Cycle runs one poll: check login, scan unread conversations, answer each
// new message, and record it only after a confirmed send.
func (l *Loop) Cycle(ctx context.Context) (Report, error) {
	report := Report{
		CycleID:   uuid.NewString(),
		StartedAt: l.clock.Now(),
	}
	log := l.log.With("cycle_id", report.CycleID)

	report.State = l.page.State(ctx)
	l.observeState(ctx, report.CycleID, report.State)

	if report.State != webclient.StateAuthenticated {
		var err error
		if report.State == webclient.StateIndeterminate {
			log.Debug("Login state indeterminate")
			err = l.checkDriver(ctx)
		}
		return l.finish(report, err)
	}

	l.focus.Lock()
	defer l.focus.Unlock()

	convs, err := l.page.UnreadConversations(ctx)
	if err != nil {
		if driverErr := l.checkDriver(ctx); driverErr != nil {
			return l.finish(report, driverErr)
		}
		return l.finish(report, newError(CategoryScan, err))
	}
	report.Unread = len(convs)
	if len(convs) > 0 {
		log.Debug("Unread conversations found", "count", len(convs))
	}

	for _, conv := range convs {
		if ctx.Err() != nil {
			break
		}
		report.Items = append(report.Items, l.handle(ctx, log, report.CycleID, conv))
	}

	return l.finish(report, nil)
}

func (l *Loop) handle(ctx context.Context, log *slog.Logger, cycleID string, conv webclient.Conversation) Item {
	item := Item{Conversation: conv.Title}
	log = log.With("conversation", conv.Title)

	extraction := l.page.LatestMessage(ctx, conv)
	switch extraction.Outcome {
	case webclient.OutcomeSkip:
		item.Outcome = ItemSkipped
		item.Reason = extraction.Reason
		log.Debug("Message skipped", "reason", extraction.Reason)
		return item
	case webclient.OutcomeError:
		item.Outcome = ItemFailed
		item.Err = newError(CategoryExtract, extraction.Err)
		log.Warn("Message extraction failed", "error", extraction.Err)
		return item
	}

	msg := extraction.Message
	item.Message = msg
	key := msg.Key()

	if l.seen.Seen(key) {
		item.Outcome = ItemDuplicate
		log.Debug("Message already answered", "sender", msg.Sender)
		return item
	}

	log.Info("Message received", "sender", msg.Sender, "preview", logger.Preview(msg.Body))
	l.publish(ctx, bus.Event{
		Type:         bus.EventMessageReceived,
		CycleID:      cycleID,
		Conversation: msg.Conversation,
		Sender:       msg.Sender,
		Body:         msg.Body,
	})

	answer, err := l.responder.Respond(ctx, msg.Body)
	if err != nil {
		item.Outcome = ItemFailed
		item.Err = newError(CategoryReply, err)
		log.Warn("Reply generation failed", "error", err)
		l.publishFailure(ctx, cycleID, msg, item.Err)
		return item
	}
	item.Reply = answer.Text
	item.Category = answer.Category
	log.Info("Reply selected", "category", answer.Category)

	if !l.page.Send(ctx, answer.Text) {
		item.Outcome = ItemUndelivered
		item.Err = newError(CategorySend, fmt.Errorf("reply to %q not delivered", conv.Title))
		log.Warn("Reply not delivered, will retry next cycle")
		l.publishFailure(ctx, cycleID, msg, item.Err)
		return item
	}

	if err := l.seen.Record(ctx, key); err != nil {
		item.Outcome = ItemFailed
		item.Err = newError(CategoryRecord, err)
		log.Error("Reply sent but not recorded", "error", err)
		return item
	}

	item.Outcome = ItemReplied
	log.Info("Reply sent", "category", answer.Category, "preview", logger.Preview(answer.Text))
	l.publish(ctx, bus.Event{
		Type:         bus.EventReplySent,
		CycleID:      cycleID,
		Conversation: msg.Conversation,
		Sender:       msg.Sender,
		Body:         msg.Body,
		Reply:        answer.Text,
		Payload:      map[string]string{"category": answer.Category},
	})
	return item
}

func (l *Loop) finish(report Report, err error) (Report, error) {
	report.FinishedAt = l.clock.Now()

	l.mu.Lock()
	l.lastReport = report
	l.lastErr = err
	l.cycles++
	l.mu.Unlock()

	return report, err
}

func (l *Loop) observeState(ctx context.Context, cycleID string, state webclient.AuthState) {
	l.mu.Lock()
	previous := l.lastState
	l.lastState = state
	l.mu.Unlock()

	if previous == state {
		return
	}

	l.log.Info("Login state changed", "from", previous.String(), "to", state.String())
	l.publish(ctx, bus.Event{
		Type:    bus.EventAuthChanged,
		CycleID: cycleID,
		State:   state.String(),
		Payload: map[string]string{"previous": previous.String()},
	})
}

func (l *Loop) checkDriver(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	if err := l.driver.Healthy(ctx); err != nil {
		return newError(CategoryDriver, err)
	}
	return nil
}

// handleFailure logs a failed cycle and recreates the browser when the driver died.
func (l *Loop) handleFailure(ctx context.Context, err error) {
	category := CategoryFromError(err)
	l.log.Error("Cycle failed", "category", category, "error", err)
	l.publish(ctx, bus.Event{
		Type:    bus.EventCycleFailed,
		Error:   err.Error(),
		Payload: map[string]string{"category": category},
	})

	if category != CategoryDriver || l.driver == nil {
		return
	}

	l.focus.Lock()
	defer l.focus.Unlock()

	if restartErr := l.driver.Restart(ctx); restartErr != nil {
		l.log.Error("Browser restart failed", "error", restartErr)
		return
	}
	l.log.Warn("Browser restarted after driver failure")
	l.publish(ctx, bus.Event{Type: bus.EventSessionRestarted})
}

func (l *Loop) publish(ctx context.Context, event bus.Event) {
	if l.events == nil {
		return
	}
	if event.At.IsZero() {
		event.At = l.clock.Now().UTC()
	}
	l.events.PublishEvent(ctx, event)
}

func (l *Loop) publishFailure(ctx context.Context, cycleID string, msg webclient.Message, err error) {
	l.publish(ctx, bus.Event{
		Type:         bus.EventReplyFailed,
		CycleID:      cycleID,
		Conversation: msg.Conversation,
		Sender:       msg.Sender,
		Body:         msg.Body,
		Error:        err.Error(),
		Payload:      map[string]string{"category": CategoryFromError(err)},
	})
}

// Status is a point-in-time view of the loop.
type Status struct {
	Running   bool   `json:"running"`
	State     string `json:"state"`
	Cycles    uint64 `json:"cycles"`
	Seen      int    `json:"seen"`
	LastCycle Report `json:"last_cycle"`
	LastError string `json:"last_error,omitempty"`
}

func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	status := Status{
		Running:   l.running.Load(),
		State:     l.lastState.String(),
		Cycles:    l.cycles,
		Seen:      l.seen.Len(),
		LastCycle: l.lastReport,
	}
	if l.lastErr != nil {
		status.LastError = l.lastErr.Error()
	}
	return status
}

// LastState is the login state observed by the most recent cycle.
func (l *Loop) LastState() webclient.AuthState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastState
}
