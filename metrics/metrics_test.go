package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/cinderblocks/libremetaverse-sub004/throttle"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

func TestCollectEmitsWorldAndThrottleMetrics(t *testing.T) {
	store := world.New(true)
	store.UpsertPrimitive(&world.Primitive{Common: world.Common{LocalID: 1}})
	store.UpsertAvatar(&world.Avatar{Common: world.Common{LocalID: 2}})

	rates := throttle.SetTotal(200_000)

	c := New(func() []SimulatorView {
		return []SimulatorView{{CircuitID: "test-circuit", Throttle: rates, Store: store}}
	})

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	var sawObjects, sawAvatars, sawThrottle bool
	for _, fam := range families {
		switch fam.GetName() {
		case "lludp_world_objects":
			sawObjects = true
			assertSingleValue(t, fam, 1)
		case "lludp_world_avatars":
			sawAvatars = true
			assertSingleValue(t, fam, 1)
		case "lludp_throttle_bps":
			sawThrottle = true
			if len(fam.GetMetric()) != int(throttle.NumChannels()) {
				t.Errorf("throttle metric count = %d, want %d", len(fam.GetMetric()), throttle.NumChannels())
			}
		}
	}
	if !sawObjects || !sawAvatars || !sawThrottle {
		t.Errorf("missing expected metric families: objects=%v avatars=%v throttle=%v", sawObjects, sawAvatars, sawThrottle)
	}
}

func assertSingleValue(t *testing.T, fam *dto.MetricFamily, want float64) {
	t.Helper()
	if len(fam.GetMetric()) != 1 {
		t.Fatalf("%s: got %d series, want 1", fam.GetName(), len(fam.GetMetric()))
	}
	got := fam.GetMetric()[0].GetGauge().GetValue()
	if got != want {
		t.Errorf("%s = %v, want %v", fam.GetName(), got, want)
	}
}

func TestDescribeSendsAllDescs(t *testing.T) {
	c := New(func() []SimulatorView { return nil })
	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	var n int
	for range descs {
		n++
	}
	if n != 7 {
		t.Errorf("Describe sent %d descs, want 7", n)
	}
}

func TestCollectWithNoSimulatorsEmitsNothing(t *testing.T) {
	c := New(func() []SimulatorView { return nil })
	metrics := make(chan prometheus.Metric, 16)
	c.Collect(metrics)
	close(metrics)
	var n int
	for range metrics {
		n++
	}
	if n != 0 {
		t.Errorf("Collect with no simulators emitted %d metrics, want 0", n)
	}
}

func TestMetricNamesAreWellFormed(t *testing.T) {
	c := New(func() []SimulatorView { return nil })
	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	for d := range descs {
		if !strings.HasPrefix(d.String(), "Desc{") {
			t.Errorf("unexpected Desc format: %s", d.String())
		}
	}
}
