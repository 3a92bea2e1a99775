// Package httpapi exposes the cycle triggers to external schedulers.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/usecase"
)

// Cycle is the trigger surface the server drives.
type Cycle interface {
	Run(ctx context.Context, opts usecase.RunOptions) domain.CycleResult
	SendDailySummary(ctx context.Context, day time.Time) domain.CycleResult
}

// Config configures the listener and trigger authorization.
type Config struct {
	Addr       string
	CronSecret string
	Location   *time.Location
}

// Server serves /cron/*, /healthz and /metrics.
type Server struct {
	cycle    Cycle
	cfg      Config
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   *mux.Router
	now      func() time.Time
}

// NewServer builds the router; gatherer may be nil to disable /metrics.
func NewServer(cycle Cycle, cfg Config, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cycle:    cycle,
		cfg:      cfg,
		gatherer: gatherer,
		logger:   logger.With("component", "http"),
		router:   mux.NewRouter(),
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestLogging)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	cron := s.router.PathPrefix("/cron").Subrouter()
	cron.Use(s.authorize)
	cron.HandleFunc("/check-earnings", s.checkEarnings).Methods(http.MethodGet, http.MethodPost)
	cron.HandleFunc("/daily-summary", s.dailySummary).Methods(http.MethodGet, http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) checkEarnings(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res := s.cycle.Run(r.Context(), usecase.RunOptions{Force: force})
	writeResult(w, res)
}

func (s *Server) dailySummary(w http.ResponseWriter, r *http.Request) {
	day := s.now().In(s.cfg.Location).AddDate(0, 0, -1)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, s.cfg.Location)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	writeResult(w, s.cycle.SendDailySummary(r.Context(), day))
}

// authorize requires "Authorization: Bearer <secret>" when a secret is configured.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CronSecret != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeResult(w http.ResponseWriter, res domain.CycleResult) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
