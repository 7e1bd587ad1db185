// metrics.go exposes notifier counters as a prometheus.Collector.

package rollnotify

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements prometheus.Collector. A nil *Metrics records nothing.
type Metrics struct {
	delivered atomic.Uint64
	batches   atomic.Uint64

	deliveredDesc *prometheus.Desc
	batchesDesc   *prometheus.Desc

	reported   *prometheus.CounterVec
	failed     *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// NewMetrics creates notifier metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		deliveredDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "items_delivered_total"),
			"Total number of items accepted by the transport",
			nil, nil),
		batchesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "batches_sent_total"),
			"Total number of transport calls",
			nil, nil),
		reported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_reported_total",
			Help:      "Total number of items enqueued, by level",
		}, []string{"level"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Total number of items whose delivery failed, by error kind",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dropped_total",
			Help:      "Total number of items dropped before delivery, by reason",
		}, []string{"reason"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of items waiting to be flushed",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.deliveredDesc
	ch <- m.batchesDesc
	m.reported.Describe(ch)
	m.failed.Describe(ch)
	m.dropped.Describe(ch)
	m.queueDepth.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.deliveredDesc, prometheus.CounterValue, float64(m.delivered.Load()))
	ch <- prometheus.MustNewConstMetric(m.batchesDesc, prometheus.CounterValue, float64(m.batches.Load()))
	m.reported.Collect(ch)
	m.failed.Collect(ch)
	m.dropped.Collect(ch)
	m.queueDepth.Collect(ch)
}

func (m *Metrics) incReported(level Level) {
	if m == nil {
		return
	}
	m.reported.WithLabelValues(string(level)).Inc()
}

func (m *Metrics) addDelivered(n int) {
	if m == nil {
		return
	}
	m.delivered.Add(uint64(n))
}

func (m *Metrics) incBatches() {
	if m == nil {
		return
	}
	m.batches.Add(1)
}

func (m *Metrics) addFailed(err error, n int) {
	if m == nil {
		return
	}
	kind := KindUnknown
	for _, k := range []Kind{KindSerialization, KindAPI, KindTransport} {
		if IsKind(err, k) {
			kind = k
			break
		}
	}
	m.failed.WithLabelValues(kind.String()).Add(float64(n))
}

func (m *Metrics) incDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
