package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_backend_requests_total",
			Help: "Total number of backend requests (by method and status class).",
		},
		[]string{"method", "class"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_signals_emitted_total",
			Help: "Total number of failure signals broadcast by the HTTP client (by kind).",
		},
		[]string{"kind"},
	)

	CacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_cache_reads_total",
			Help: "Total number of cache reads (by resource and outcome: hit, fetch, error).",
		},
		[]string{"resource", "outcome"},
	)

	SessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_session_authenticated",
			Help: "1 while the session is authenticated, 0 otherwise.",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, SignalsEmitted, CacheReads, SessionState)
}

// StatusClass maps an HTTP status to "2xx", "4xx", ... and 0 to "network".
func StatusClass(status int) string {
	if status <= 0 {
		return "network"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting metrics listener", zap.String("address", addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
