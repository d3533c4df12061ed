package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

// Observer records refresh coordinator activity as Prometheus metrics.
type Observer struct {
	reg *prometheus.Registry

	refreshRuns     *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshAttempts *prometheus.CounterVec
	queued          prometheus.Gauge
	drained         prometheus.Histogram
	replays         *prometheus.CounterVec
}

var _ refresh.Observer = (*Observer)(nil)

// New registers the refresh metrics on a fresh registry labelled with client.
func New(client string) *Observer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	labels := prometheus.Labels{"client": client}

	return &Observer{
		reg: reg,
		refreshRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "samvad_request_refresh_runs_total",
			Help:        "Credential refresh runs by outcome",
			ConstLabels: labels,
		}, []string{"status"}),
		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "samvad_request_refresh_duration_seconds",
			Help:        "Time from refresh start until settle, including retries",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBucketsRange(0.001, 30, 20),
		}, []string{"status"}),
		refreshAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "samvad_request_refresh_attempts_total",
			Help:        "Individual refresh attempts by result",
			ConstLabels: labels,
		}, []string{"result"}),
		queued: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "samvad_request_refresh_queue_depth",
			Help:        "Requests currently parked behind an in-flight refresh",
			ConstLabels: labels,
		}),
		drained: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "samvad_request_refresh_queue_drained",
			Help:        "Number of parked requests released per refresh",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		replays: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "samvad_request_replays_total",
			Help:        "Replayed requests after a 401",
			ConstLabels: labels,
		}, []string{"path"}),
	}
}

// Registry exposes the underlying registry.
func (o *Observer) Registry() *prometheus.Registry { return o.reg }

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{Registry: o.reg})
}

func (o *Observer) RefreshStarted() {}

func (o *Observer) RefreshAttempt(_ int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.refreshAttempts.WithLabelValues(result).Inc()
}

func (o *Observer) RefreshSettled(status refresh.Status, elapsedSeconds float64) {
	o.refreshRuns.WithLabelValues(status.String()).Inc()
	o.refreshDuration.WithLabelValues(status.String()).Observe(elapsedSeconds)
}

func (o *Observer) RequestQueued(depth int) {
	o.queued.Set(float64(depth))
}

func (o *Observer) QueueDrained(size int) {
	o.queued.Set(0)
	o.drained.Observe(float64(size))
}

func (o *Observer) Replayed(fastPath bool) {
	path := "refresh"
	if fastPath {
		path = "fast"
	}
	o.replays.WithLabelValues(path).Inc()
}
