package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	requests   *prom.CounterVec
	durations  *prom.HistogramVec
	population *prom.GaugeVec
	published  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the service metrics on reg.
// A nil registry gets a fresh one, useful in tests.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "phonehome",
			Name:      "requests_total",
			Help:      "Requests received by endpoint and outcome",
		}, []string{"endpoint", "result"}),
		durations: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "phonehome",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration by endpoint",
			Buckets:   prom.DefBuckets,
		}, []string{"endpoint"}),
		population: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "phonehome",
			Name:      "channel_machines",
			Help:      "Estimated machine population per image channel",
		}, []string{"channel"}),
		published: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "phonehome",
			Name:      "published_events_total",
			Help:      "Events handed to the stream publisher by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.requests, pr.durations, pr.population, pr.published)
	return pr
}

func (p *PrometheusRecorder) IncRequest(endpoint string, result ResultLabel) {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.WithLabelValues(endpoint, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRequestDuration(endpoint string, d time.Duration) {
	if p == nil || p.durations == nil {
		return
	}
	p.durations.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPopulation(channel string, machines int64) {
	if p == nil || p.population == nil {
		return
	}
	p.population.WithLabelValues(channel).Set(float64(machines))
}

func (p *PrometheusRecorder) IncPublished(success bool) {
	if p == nil || p.published == nil {
		return
	}
	res := "failed"
	if success {
		res = "published"
	}
	p.published.WithLabelValues(res).Inc()
}
