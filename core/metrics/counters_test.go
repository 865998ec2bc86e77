package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrementAndRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "A")

	m.IncMalformed()
	m.IncMalformed()
	m.IncGated()

	if got := testutil.ToFloat64(m.errMalformed); got != 2 {
		t.Errorf("errMalformed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errGated); got != 1 {
		t.Errorf("errGated = %v, want 1", got)
	}
}

func TestGaugesSet(t *testing.T) {
	m := New(nil, "A")
	m.SetNeighborCount(3)
	m.SetRouteCount(5)

	if got := testutil.ToFloat64(m.neighborCount); got != 3 {
		t.Errorf("neighborCount = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.routeCount); got != 5 {
		t.Errorf("routeCount = %v, want 5", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncMalformed()
	m.IncCheckFailed()
	m.IncGated()
	m.IncOrphanResp()
	m.IncRadioSendError()
	m.SetNeighborCount(1)
	m.SetRouteCount(1)
}
