// Package metrics exposes the engine's error and state counters as
// Prometheus metrics (SPEC_FULL.md §11.4).
//
// Instrumentation is optional: a nil *Metrics is safe to call every method
// on and simply does nothing, so the engine can be built without a
// registry wired in (tests, or a deployment that doesn't run an exporter).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges named in spec §7 plus the
// neighbor/route table sizes used to watch the engine in production.
type Metrics struct {
	errMalformed   prometheus.Counter
	errCheckFailed prometheus.Counter
	errGated       prometheus.Counter
	errOrphanResp  prometheus.Counter
	radioSendErr   prometheus.Counter

	neighborCount prometheus.Gauge
	routeCount    prometheus.Gauge
}

// New creates a Metrics instance labeled with node, and registers it
// against reg if reg is non-nil.
func New(reg prometheus.Registerer, node string) *Metrics {
	labels := prometheus.Labels{"node": node}

	m := &Metrics{
		errMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dsrnode",
			Subsystem:   "errors",
			Name:        "malformed_total",
			Help:        "Frames dropped for structural parse failure.",
			ConstLabels: labels,
		}),
		errCheckFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dsrnode",
			Subsystem:   "errors",
			Name:        "check_failed_total",
			Help:        "RESP frames dropped for integrity check mismatch.",
			ConstLabels: labels,
		}),
		errGated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dsrnode",
			Subsystem:   "errors",
			Name:        "gated_total",
			Help:        "Frames dropped for failing a semantic gate (non-neighbor last hop, route missing self).",
			ConstLabels: labels,
		}),
		errOrphanResp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dsrnode",
			Subsystem:   "errors",
			Name:        "orphan_resp_total",
			Help:        "RESP frames matching no in-flight transaction.",
			ConstLabels: labels,
		}),
		radioSendErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dsrnode",
			Subsystem:   "radio",
			Name:        "send_errors_total",
			Help:        "Radio send() calls that returned an error.",
			ConstLabels: labels,
		}),
		neighborCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dsrnode",
			Name:        "neighbors",
			Help:        "Current size of the neighbor table.",
			ConstLabels: labels,
		}),
		routeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dsrnode",
			Name:        "routes",
			Help:        "Current size of the route table.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.errMalformed,
			m.errCheckFailed,
			m.errGated,
			m.errOrphanResp,
			m.radioSendErr,
			m.neighborCount,
			m.routeCount,
		)
	}
	return m
}

func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	m.errMalformed.Inc()
}

func (m *Metrics) IncCheckFailed() {
	if m == nil {
		return
	}
	m.errCheckFailed.Inc()
}

func (m *Metrics) IncGated() {
	if m == nil {
		return
	}
	m.errGated.Inc()
}

func (m *Metrics) IncOrphanResp() {
	if m == nil {
		return
	}
	m.errOrphanResp.Inc()
}

func (m *Metrics) IncRadioSendError() {
	if m == nil {
		return
	}
	m.radioSendErr.Inc()
}

func (m *Metrics) SetNeighborCount(n int) {
	if m == nil {
		return
	}
	m.neighborCount.Set(float64(n))
}

func (m *Metrics) SetRouteCount(n int) {
	if m == nil {
		return
	}
	m.routeCount.Set(float64(n))
}
