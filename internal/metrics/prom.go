package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PromGateway struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewPromGateway(reg prometheus.Registerer) *PromGateway {
	m := &PromGateway{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskform_gateway_calls_total",
			Help: "Number of task gateway calls by operation and outcome",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskform_gateway_call_seconds",
			Help:    "Latency of task gateway calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.calls, m.latency)
	return m
}

func (m *PromGateway) CallDone(op, outcome string, d time.Duration) {
	m.calls.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

type PromServer struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewPromServer(reg prometheus.Registerer) *PromServer {
	m := &PromServer{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_requests_total",
			Help: "Number of task store requests by route and status code",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskd_request_seconds",
			Help:    "Latency of task store requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *PromServer) RequestServed(route string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}
