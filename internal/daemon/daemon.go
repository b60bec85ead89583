// Package daemon serves the bucketlens HTTP API.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/bucketlens/internal/agent"
	"github.com/yairfalse/bucketlens/internal/config"
	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// Config holds daemon configuration
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Daemon serves chat, analysis and cache endpoints over HTTP.
type Daemon struct {
	addr            string
	shutdownTimeout time.Duration
	hub             *agent.Hub
	metrics         *Metrics
	startTime       time.Time
	mux             *http.ServeMux
}

// NewDaemon creates a new daemon instance. metrics may be nil.
func NewDaemon(cfg Config, hub *agent.Hub, metrics *Metrics) (*Daemon, error) {
	if hub == nil {
		return nil, apperrors.Configurationf("daemon", "agent hub is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	d := &Daemon{
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		metrics:         metrics,
		startTime:       time.Now(),
		mux:             http.NewServeMux(),
	}
	d.routes()
	return d, nil
}

func (d *Daemon) routes() {
	d.handle("GET /api", d.handleAPI)
	d.handle("GET /health", d.handleHealth)
	d.handle("POST /chat", d.chatHandler(config.ModeClassifier))
	d.handle("POST /enhanced-chat", d.chatHandler(config.ModeTools))
	d.handle("GET /analyze/{bucket}", d.handleAnalyze)
	d.handle("GET /status", d.handleStatus)
	d.handle("POST /clear-cache", d.handleClearCache)
}

// handle registers h with request ids, logging and metrics.
func (d *Daemon) handle(pattern string, h http.HandlerFunc) {
	route := pattern[strings.Index(pattern, " ")+1:]
	d.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		logger := log.With().Str("request_id", reqID).Str("route", route).Logger()
		h(rec, r.WithContext(logger.WithContext(r.Context())))

		elapsed := time.Since(start)
		d.metrics.RecordRequest(r.Context(), route, rec.status, elapsed.Seconds())
		logger.Debug().
			Str("method", r.Method).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request served")
	})
}

// Handler returns the HTTP handler.
func (d *Daemon) Handler() http.Handler {
	return d.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return apperrors.Configuration("daemon", err)
	}
	return d.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("http api listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http api stopped")
	return nil
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
