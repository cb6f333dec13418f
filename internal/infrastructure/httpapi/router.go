package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"http-inspector/internal/infrastructure/config"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/internal/inspector"
)

type Deps struct {
	Cfg       config.Config
	Logger    *zerolog.Logger
	Metrics   *obs.Metrics
	Inspector *inspector.Inspector
	Monitor   *MonitorHub
}

// NewRouter serves the inspection API: the pull surface UIs read captured
// transactions from, plus health, metrics and the live monitor socket.
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(withCORS(d.Cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	r.Get("/api/version", func(w http.ResponseWriter, _ *http.Request) {
		info := obs.BuildInfo()
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    "http-inspector",
			"version": info["version"],
			"commit":  info["commit"],
			"time":    time.Now().UTC(),
		})
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", d.handleListTransactions)
		r.Delete("/", d.handleClearTransactions)
		r.Get("/stream", d.handleTransactionStream)
		r.Get("/{id}", d.handleTransactionByID)
		r.Get("/{id}/share", d.handleShareTransaction)
	})
	r.Get("/api/transactions.har", d.handleExportHAR)
	r.Get("/api/stats", d.handleStats)
	r.Get("/api/settings", d.handleSettings)
	if d.Monitor != nil {
		r.Get("/api/monitor/ws", d.Monitor.HandleWS)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	})
	return r
}

func withCORS(cfg config.Config) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.CORSAllowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Sec-WebSocket-Protocol")
				w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
