package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"workshop/internal/config"
	"workshop/internal/events"
	"workshop/internal/export"
	"workshop/internal/inventory"
	"workshop/internal/metrics"
	"workshop/internal/service"
)

const requestIDHeader = "X-Request-ID"

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP API serves.
type Deps struct {
	Bookings  *service.BookingService
	Invoices  *service.InvoiceService
	Inventory *inventory.Service
	Inbox     *events.Inbox
	Exporter  *export.Exporter
	Store     Pinger
}

// HTTPServer exposes the booking and invoice workflows as a JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	logger *zerolog.Logger
	server *http.Server
	auth   *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, deps: deps, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", srv.handleUpdateBooking)

	mux.HandleFunc("POST /api/v1/invoices/lines", srv.handleBuildLine)
	mux.HandleFunc("POST /api/v1/invoices/previews", srv.handleOpenPreview)
	mux.HandleFunc("GET /api/v1/invoices/previews/{id}", srv.handleGetPreview)
	mux.HandleFunc("POST /api/v1/invoices/previews/{id}/acknowledge", srv.handleAcknowledge)
	mux.HandleFunc("POST /api/v1/invoices/previews/{id}/commit", srv.handleCommit)
	mux.HandleFunc("DELETE /api/v1/invoices/previews/{id}", srv.handleCancelPreview)
	mux.HandleFunc("GET /api/v1/invoices/previews/{id}/report.xlsx", srv.handlePreviewReport)

	mux.HandleFunc("GET /api/v1/inventory", srv.handleInventory)
	mux.HandleFunc("GET /api/v1/notifications", srv.handleNotifications)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
