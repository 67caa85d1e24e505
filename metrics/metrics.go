// Package metrics aggregates circuit, throttle, and world-store stats
// from every simulator in a session into a single prometheus.Collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cinderblocks/libremetaverse-sub004/circuit"
	"github.com/cinderblocks/libremetaverse-sub004/throttle"
	"github.com/cinderblocks/libremetaverse-sub004/world"
)

// SimulatorView is one connected simulator's circuit, current throttle
// rates, and world store, as read by a scrape.
type SimulatorView struct {
	CircuitID string
	Circuit   *circuit.Circuit
	Throttle  throttle.Rates
	Store     *world.Store
}

// Collector implements prometheus.Collector over a caller-supplied
// snapshot function, following the teacher's pull-based exporter shape:
// nothing is tracked between scrapes, current() is the source of truth.
type Collector struct {
	current func() []SimulatorView

	latency     *prometheus.Desc
	state       *prometheus.Desc
	objectCount *prometheus.Desc
	avatarCount *prometheus.Desc
	throttleBps *prometheus.Desc
	fps         *prometheus.Desc
	dilation    *prometheus.Desc
}

// New builds a Collector that calls current on every scrape.
func New(current func() []SimulatorView) *Collector {
	return &Collector{
		current: current,
		latency: prometheus.NewDesc(
			"lludp_circuit_latency_seconds",
			"Last sampled round-trip ping latency, by circuit.",
			[]string{"circuit"}, nil,
		),
		state: prometheus.NewDesc(
			"lludp_circuit_state",
			"1 if the circuit is currently in the given state, 0 otherwise.",
			[]string{"circuit", "state"}, nil,
		),
		objectCount: prometheus.NewDesc(
			"lludp_world_objects",
			"Tracked primitive count, by circuit.",
			[]string{"circuit"}, nil,
		),
		avatarCount: prometheus.NewDesc(
			"lludp_world_avatars",
			"Tracked avatar count, by circuit.",
			[]string{"circuit"}, nil,
		),
		throttleBps: prometheus.NewDesc(
			"lludp_throttle_bps",
			"Current throttle rate in bits per second, by circuit and channel.",
			[]string{"circuit", "channel"}, nil,
		),
		fps: prometheus.NewDesc(
			"lludp_circuit_sim_fps",
			"Simulator-reported frame rate, by circuit.",
			[]string{"circuit"}, nil,
		),
		dilation: prometheus.NewDesc(
			"lludp_circuit_time_dilation",
			"Simulator-reported time dilation factor, by circuit.",
			[]string{"circuit"}, nil,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.latency
	descs <- c.state
	descs <- c.objectCount
	descs <- c.avatarCount
	descs <- c.throttleBps
	descs <- c.fps
	descs <- c.dilation
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	for _, sim := range c.current() {
		id := sim.CircuitID

		if sim.Circuit != nil {
			metrics <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, sim.Circuit.Latency().Seconds(), id)
			metrics <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, 1, id, sim.Circuit.State().String())

			stats := sim.Circuit.Stats()
			metrics <- prometheus.MustNewConstMetric(c.fps, prometheus.GaugeValue, float64(stats.FPS), id)
			metrics <- prometheus.MustNewConstMetric(c.dilation, prometheus.GaugeValue, float64(stats.Dilation), id)
		}

		if sim.Store != nil {
			wstats := sim.Store.Stats()
			metrics <- prometheus.MustNewConstMetric(c.objectCount, prometheus.GaugeValue, float64(wstats.ObjectCount), id)
			metrics <- prometheus.MustNewConstMetric(c.avatarCount, prometheus.GaugeValue, float64(wstats.AvatarCount), id)
		}

		for ch := throttle.Channel(0); ch < throttle.NumChannels(); ch++ {
			metrics <- prometheus.MustNewConstMetric(c.throttleBps, prometheus.GaugeValue, float64(sim.Throttle[ch]), id, ch.String())
		}
	}
}
