package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records metrics as Prometheus collectors.
type Prometheus struct {
	gatherer   prometheus.Gatherer
	received   prometheus.Counter
	rejected   *prometheus.CounterVec
	persisted  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	latency    prometheus.Histogram
}

// NewPrometheus creates the relay collectors and registers them on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		gatherer: reg,
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "device_relay_events_received_total",
			Help: "Inbound device events.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_relay_events_rejected_total",
			Help: "Inbound events refused before processing.",
		}, []string{"reason"}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_relay_history_appends_total",
			Help: "History append attempts.",
		}, []string{"ok"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_relay_deliveries_total",
			Help: "Channel delivery attempts.",
		}, []string{"channel", "ok"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "device_relay_ingest_duration_seconds",
			Help:    "Time spent handling one accepted event.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(p.received, p.rejected, p.persisted, p.deliveries, p.latency)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func (p *Prometheus) RecordReceived() {
	p.received.Inc()
}

func (p *Prometheus) RecordRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordPersisted(ok bool) {
	p.persisted.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (p *Prometheus) RecordDelivery(channel string, ok bool) {
	p.deliveries.WithLabelValues(channel, strconv.FormatBool(ok)).Inc()
}

func (p *Prometheus) RecordProcessed(latency time.Duration) {
	p.latency.Observe(latency.Seconds())
}

var _ Recorder = (*Prometheus)(nil)
