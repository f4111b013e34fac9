package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// PrometheusMetricsCollector implements smpp.MetricsCollector with
// Prometheus counters, a gauge and a histogram, covering what one ESME
// session produces: no queue-size gauge, no auth-failure counter (this
// client authenticates itself, it doesn't authenticate anyone), no
// multi-bind-type connection counter (one Client is one session).
type PrometheusMetricsCollector struct {
	registry *prometheus.Registry

	pduSentTotal     *prometheus.CounterVec
	pduReceivedTotal *prometheus.CounterVec
	bindSuccessTotal prometheus.Counter
	bindFailureTotal prometheus.Counter

	sessionState *prometheus.GaugeVec

	roundTripSeconds *prometheus.HistogramVec

	server *http.Server
}

// NewPrometheusMetricsCollector builds a collector and, if port > 0, starts
// a background HTTP server exposing /metrics on it.
func NewPrometheusMetricsCollector(port int) *PrometheusMetricsCollector {
	registry := prometheus.NewRegistry()

	pmc := &PrometheusMetricsCollector{registry: registry}

	pmc.pduSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smpp_client_pdu_sent_total",
		Help: "Total number of PDUs sent, by command name.",
	}, []string{"command"})

	pmc.pduReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smpp_client_pdu_received_total",
		Help: "Total number of PDUs received, by command name.",
	}, []string{"command"})

	pmc.bindSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smpp_client_bind_success_total",
		Help: "Total number of successful binds.",
	})

	pmc.bindFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smpp_client_bind_failure_total",
		Help: "Total number of failed bind attempts.",
	})

	pmc.sessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smpp_client_session_state",
		Help: "1 for the session's current state, 0 for every other known state.",
	}, []string{"state"})

	pmc.roundTripSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smpp_client_round_trip_seconds",
		Help:    "Request/response round-trip latency, by command name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	registry.MustRegister(
		pmc.pduSentTotal,
		pmc.pduReceivedTotal,
		pmc.bindSuccessTotal,
		pmc.bindFailureTotal,
		pmc.sessionState,
		pmc.roundTripSeconds,
	)

	if port > 0 {
		pmc.startMetricsServer(port)
	}
	return pmc
}

func (p *PrometheusMetricsCollector) IncPDUSent(commandName string)     { p.pduSentTotal.WithLabelValues(commandName).Inc() }
func (p *PrometheusMetricsCollector) IncPDUReceived(commandName string) { p.pduReceivedTotal.WithLabelValues(commandName).Inc() }
func (p *PrometheusMetricsCollector) IncBindSuccess()                   { p.bindSuccessTotal.Inc() }
func (p *PrometheusMetricsCollector) IncBindFailure()                   { p.bindFailureTotal.Inc() }

func (p *PrometheusMetricsCollector) ObserveRoundTrip(commandName string, d time.Duration) {
	p.roundTripSeconds.WithLabelValues(commandName).Observe(d.Seconds())
}

// states lists the names smpp.SessionState.String() produces, i.e. every
// value the session engine passes to SetSessionState.
var states = []string{"closed", "open", "bound_tx", "bound_rx", "bound_trx", "unbinding"}

func (p *PrometheusMetricsCollector) SetSessionState(state string) {
	for _, s := range states {
		if s == state {
			p.sessionState.WithLabelValues(s).Set(1)
		} else {
			p.sessionState.WithLabelValues(s).Set(0)
		}
	}
}

func (p *PrometheusMetricsCollector) startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	p.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// nothing sensible to do with an error from a background
			// metrics server that the caller never checked on
		}
	}()
}

// Stop shuts down the metrics HTTP server, if one was started.
func (p *PrometheusMetricsCollector) Stop() error {
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}

var _ smpp.MetricsCollector = (*PrometheusMetricsCollector)(nil)
