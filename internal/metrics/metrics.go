package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics groups the run's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	pagesFetched   *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
	keysAdded      *prometheus.CounterVec
	pairsCompleted *prometheus.CounterVec
	unitsTotal     *prometheus.CounterVec
	unitAttempts   prometheus.Counter
	unitDuration   *prometheus.HistogramVec
}

// New registers collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "airdropscope_event_pages_total", Help: "Event pages fetched"},
			[]string{"source", "filter"},
		),
		fetchRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "airdropscope_event_page_retries_total", Help: "Event page fetch retries"},
			[]string{"source", "filter"},
		),
		keysAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "airdropscope_keys_added_total", Help: "New dedup keys recorded"},
			[]string{"source", "filter"},
		),
		pairsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "airdropscope_ingest_pairs_total", Help: "Source/filter pairs by final status"},
			[]string{"status"},
		),
		unitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "airdropscope_units_total", Help: "Submission units by final status"},
			[]string{"status"},
		),
		unitAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "airdropscope_unit_attempts_total", Help: "Submission attempts including retries"},
		),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "airdropscope_unit_duration_seconds", Help: "Time from first submit to final status", Buckets: prometheus.DefBuckets},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.pagesFetched, m.fetchRetries, m.keysAdded, m.pairsCompleted, m.unitsTotal, m.unitAttempts, m.unitDuration)
	}
	return m
}

func (m *Metrics) PageFetched(source, filter string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(source, filter).Inc()
}

func (m *Metrics) PageRetried(source, filter string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(source, filter).Inc()
}

func (m *Metrics) KeysAdded(source, filter string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.keysAdded.WithLabelValues(source, filter).Add(float64(n))
}

func (m *Metrics) PairFinished(status string) {
	if m == nil {
		return
	}
	m.pairsCompleted.WithLabelValues(status).Inc()
}

func (m *Metrics) UnitFinished(status string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.unitsTotal.WithLabelValues(status).Inc()
	m.unitAttempts.Add(float64(attempts))
	m.unitDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
}
