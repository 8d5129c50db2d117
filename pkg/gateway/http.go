package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"wabot/pkg/webclient"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const captureTimeout = 90 * time.Second

type loginResponse struct {
	Status string `json:"status"`
	QR     string `json:"qr,omitempty"`
}

func (s *Service) newServer() *http.Server {
	return &http.Server{
		Addr:              s.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Service) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleLogin)
	r.Get("/qr.png", s.handleQRImage)
	r.Get("/screenshot", s.handleScreenshot)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	return r
}

// handleLogin reports the login state and, while logged out, the QR payload.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch s.page.State(ctx) {
	case webclient.StateAuthenticated:
		writeJSON(w, s.log, http.StatusOK, loginResponse{Status: "authenticated"})
	case webclient.StateUnauthenticated:
		code, ok, err := s.page.QRCode(ctx)
		if err != nil {
			s.log.Error("QR lookup failed", "error", err)
			writeError(w, s.log, http.StatusInternalServerError, "qr lookup failed")
			return
		}
		if !ok {
			writeJSON(w, s.log, http.StatusOK, loginResponse{Status: "qr_unavailable"})
			return
		}
		writeJSON(w, s.log, http.StatusOK, loginResponse{Status: "unauthenticated", QR: code})
	default:
		if err := s.browser.Healthy(ctx); err != nil {
			s.log.Error("Browser unhealthy", "error", err)
			writeError(w, s.log, http.StatusInternalServerError, "browser session unavailable")
			return
		}
		writeJSON(w, s.log, http.StatusOK, loginResponse{Status: "indeterminate"})
	}
}

func (s *Service) handleQRImage(w http.ResponseWriter, r *http.Request) {
	data, ok, err := s.page.QRImage(r.Context())
	if err != nil {
		s.log.Error("QR lookup failed", "error", err)
		writeError(w, s.log, http.StatusInternalServerError, "qr lookup failed")
		return
	}
	if !ok {
		writeError(w, s.log, http.StatusNotFound, "qr code not available")
		return
	}
	writePNG(w, s.log, data)
}

func (s *Service) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), captureTimeout)
	defer cancel()

	data, err := s.browser.Screenshot(ctx, true)
	if err != nil {
		s.log.Error("Screenshot failed", "error", err)
		writeError(w, s.log, http.StatusInternalServerError, "screenshot failed")
		return
	}
	writePNG(w, s.log, data)
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := "not_ready"
	if s.isReady() {
		status = "ready"
	}
	writeJSON(w, s.log, http.StatusOK, s.currentStatus(status))
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	writeJSON(w, s.log, statusCode, s.currentStatus(status))
}

func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, statusCode int, message string) {
	writeJSON(w, log, statusCode, map[string]string{"error": message})
}

func writePNG(w http.ResponseWriter, log *slog.Logger, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error("Failed to write image", "error", err)
	}
}
