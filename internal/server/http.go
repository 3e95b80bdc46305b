package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"AMMLedger/internal/observability"
	"AMMLedger/internal/query"
)

// HTTPServer serves the read-only JSON API, health probes, and the
// Prometheus metrics endpoint on a single listener.
type HTTPServer struct {
	srv     *http.Server
	log     zerolog.Logger
	metrics *observability.Metrics
	queries *query.QueryService
	health  *observability.HealthChecker
}

func NewHTTPServer(
	addr string,
	queries *query.QueryService,
	health *observability.HealthChecker,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *HTTPServer {
	s := &HTTPServer{
		log:     log.With().Str("component", "http").Logger(),
		metrics: metrics,
		queries: queries,
		health:  health,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/pools", s.instrument("list_pools", s.handleListPools))
	mux.HandleFunc("/v1/pools/", s.instrument("get_pool", s.handleGetPool))
	mux.HandleFunc("/v1/positions", s.instrument("list_positions", s.handleListPositions))
	mux.HandleFunc("/v1/balances", s.instrument("list_saved_balances", s.handleListSavedBalances))
	mux.HandleFunc("/v1/extensions", s.instrument("list_extensions", s.handleListExtensions))
	mux.HandleFunc("/v1/events", s.instrument("get_events", s.handleGetEvents))
	mux.HandleFunc("/v1/integrity", s.instrument("verify_integrity", s.handleVerifyIntegrity))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// instrument wraps a handler with request counting and latency
// observation under a stable endpoint label.
func (s *HTTPServer) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
		}
		h(w, r)
		if s.metrics != nil {
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *HTTPServer) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.queries.ListPools(r.Context())
	if err != nil {
		s.fail(w, "list_pools", err)
		return
	}
	s.respond(w, map[string]interface{}{"pools": pools})
}

func (s *HTTPServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID := strings.TrimPrefix(r.URL.Path, "/v1/pools/")
	if poolID == "" {
		http.Error(w, `{"error":"missing pool id"}`, http.StatusBadRequest)
		return
	}

	pool, err := s.queries.GetPool(r.Context(), poolID)
	if err != nil {
		s.fail(w, "get_pool", err)
		return
	}
	if pool == nil {
		http.Error(w, `{"error":"pool not found"}`, http.StatusNotFound)
		return
	}
	s.respond(w, pool)
}

func (s *HTTPServer) handleListPositions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, `{"error":"missing owner parameter"}`, http.StatusBadRequest)
		return
	}

	positions, err := s.queries.ListPositions(r.Context(), owner, r.URL.Query().Get("pool"))
	if err != nil {
		s.fail(w, "list_positions", err)
		return
	}
	s.respond(w, map[string]interface{}{"positions": positions})
}

func (s *HTTPServer) handleListSavedBalances(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, `{"error":"missing owner parameter"}`, http.StatusBadRequest)
		return
	}

	balances, err := s.queries.ListSavedBalances(r.Context(), owner)
	if err != nil {
		s.fail(w, "list_saved_balances", err)
		return
	}
	s.respond(w, map[string]interface{}{"balances": balances})
}

func (s *HTTPServer) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	exts, err := s.queries.ListExtensions(r.Context())
	if err != nil {
		s.fail(w, "list_extensions", err)
		return
	}
	s.respond(w, map[string]interface{}{"extensions": exts})
}

func (s *HTTPServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var cursor int64
	if raw := q.Get("cursor"); raw != "" {
		var err error
		cursor, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			http.Error(w, `{"error":"invalid cursor"}`, http.StatusBadRequest)
			return
		}
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	page, err := s.queries.GetEvents(r.Context(), cursor, limit, q.Get("pool"))
	if err != nil {
		s.fail(w, "get_events", err)
		return
	}
	s.respond(w, page)
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.fail(w, "verify_integrity", err)
		return
	}
	s.respond(w, report)
}

func (s *HTTPServer) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, endpoint string, err error) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	s.log.Error().Err(err).Str("endpoint", endpoint).Msg("query failed")
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
