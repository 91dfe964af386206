// Package metrics expõe as métricas Prometheus do gateway.
//
// Todos os métodos aceitam receptor nil, então o pipeline pode rodar sem métricas.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transit_gateway"

type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	InFlight         prometheus.Gauge
}

// New cria as métricas num registry próprio (com collectors de processo e Go).
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "total",
				Help:      "Requests by capability and terminal outcome",
			},
			[]string{"capability", "outcome"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Latency of upstream calls",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"capability", "code"},
		),

		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "in_flight",
				Help:      "Upstream calls currently in flight",
			},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.UpstreamDuration,
		m.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterRateTableSize publica o tamanho atual da tabela do rate limit.
func (m *Metrics) RegisterRateTableSize(size func() int) {
	if m == nil || size == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "tracked_clients",
			Help:      "Client identities currently held by the rate limit table",
		},
		func() float64 { return float64(size()) },
	))
}

func (m *Metrics) ObserveRequest(capability, outcome string) {
	if m == nil {
		return
	}
	if capability == "" {
		capability = "none"
	}
	m.Requests.WithLabelValues(capability, outcome).Inc()
}

// ObserveUpstream registra a latência; status 0 significa que não houve resposta.
func (m *Metrics) ObserveUpstream(capability string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.UpstreamDuration.WithLabelValues(capability, code).Observe(d.Seconds())
}

// TrackInFlight incrementa o gauge e devolve a função que decrementa.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

// Handler serve o endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
