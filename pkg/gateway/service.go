package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"wabot/pkg/bus"
	"wabot/pkg/config"
	"wabot/pkg/ingest"
	"wabot/pkg/notify"
	"wabot/pkg/webclient"

	"golang.org/x/sync/errgroup"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 10000

	notifierBuffer = 32
	shutdownGrace  = 5 * time.Second
)

// Browser is the session lifecycle and capture surface the gateway owns.
type Browser interface {
	Start(ctx context.Context) error
	Healthy(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

// Page is the read-only page inspection used by HTTP handlers.
type Page interface {
	State(ctx context.Context) webclient.AuthState
	QRCode(ctx context.Context) (string, bool, error)
	QRImage(ctx context.Context) ([]byte, bool, error)
}

// Loop is the ingestion loop.
type Loop interface {
	Run(ctx context.Context) error
	Running() bool
	Status() ingest.Status
}

// Components are the collaborators a Service runs.
type Components struct {
	Browser   Browser
	Page      Page
	Loop      Loop
	Bus       *bus.MessageBus
	Notifiers []notify.Notifier
	// Closers run after the session closes, in order.
	Closers []func() error
}

type Service struct {
	cfg       config.GatewayConfig
	log       *slog.Logger
	browser   Browser
	page      Page
	loop      Loop
	bus       *bus.MessageBus
	notifiers []notify.Notifier
	closers   []func() error

	mu             sync.RWMutex
	startedAt      time.Time
	sessionStarted bool
	browserVersion string
	notifierStates map[string]componentState
}

type componentState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status         string                    `json:"status"`
	UptimeSeconds  int64                     `json:"uptime_seconds"`
	Browser        string                    `json:"browser,omitempty"`
	SessionStarted bool                      `json:"session_started"`
	Loop           ingest.Status             `json:"loop"`
	Notifiers      map[string]componentState `json:"notifiers,omitempty"`
}

func NewService(cfg config.GatewayConfig, components Components, log *slog.Logger) (*Service, error) {
	if components.Browser == nil {
		return nil, errors.New("browser is required")
	}
	if components.Page == nil {
		return nil, errors.New("page is required")
	}
	if components.Loop == nil {
		return nil, errors.New("loop is required")
	}
	if log == nil {
		log = slog.Default()
	}

	eventBus := components.Bus
	if eventBus == nil {
		eventBus = bus.NewMessageBus()
	}

	states := make(map[string]componentState, len(components.Notifiers))
	for _, n := range components.Notifiers {
		states[n.Name()] = componentState{}
	}

	return &Service{
		cfg:            cfg,
		log:            log.With("component", "gateway.service"),
		browser:        components.Browser,
		page:           components.Page,
		loop:           components.Loop,
		bus:            eventBus,
		notifiers:      components.Notifiers,
		closers:        components.Closers,
		notifierStates: states,
	}, nil
}

// Run starts the browser session, then runs the ingestion loop, the HTTP
// surface and every notifier until ctx is done or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	defer s.shutdown()

	if err := s.browser.Start(ctx); err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	s.mu.Lock()
	s.sessionStarted = true
	s.mu.Unlock()

	if version, err := s.browser.Version(ctx); err != nil {
		s.log.Warn("Browser version unavailable", "error", err)
	} else {
		s.mu.Lock()
		s.browserVersion = version
		s.mu.Unlock()
		s.log.Info("Browser session started", "version", version)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Subscribe before the loop runs so its first auth_changed event is delivered.
	for _, n := range s.notifiers {
		events, unsubscribe := s.bus.SubscribeEvents(gctx, notifierBuffer)
		s.setNotifierState(n.Name(), componentState{Running: true})

		g.Go(func() error {
			defer unsubscribe()
			err := n.Run(gctx, events)
			s.setNotifierState(n.Name(), componentState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s notifier: %w", n.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := s.loop.Run(gctx); err != nil {
			return fmt.Errorf("run ingestion loop: %w", err)
		}
		return nil
	})

	server := s.newServer()
	g.Go(func() error {
		s.log.Info("HTTP server started", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Service) shutdown() {
	s.bus.Close()

	s.mu.Lock()
	s.sessionStarted = false
	s.mu.Unlock()

	if err := s.browser.Close(); err != nil {
		s.log.Warn("Browser close failed", "error", err)
	}
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			s.log.Warn("Shutdown step failed", "error", err)
		}
	}
	s.log.Info("Gateway stopped")
}

// Address is the HTTP listen address.
func (s *Service) Address() string {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	return host + ":" + strconv.Itoa(port)
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	started := s.sessionStarted
	s.mu.RUnlock()

	return started && s.loop.Running()
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	notifiers := make(map[string]componentState, len(s.notifierStates))
	for name, state := range s.notifierStates {
		notifiers[name] = state
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		Browser:        s.browserVersion,
		SessionStarted: s.sessionStarted,
		Loop:           s.loop.Status(),
		Notifiers:      notifiers,
	}
}

func (s *Service) setNotifierState(name string, state componentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifierStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
