package throttle

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a circuit's current throttle rates as a prometheus
// gauge vector, one series per channel, labeled by circuit id.
type Collector struct {
	desc    *prometheus.Desc
	current func() map[string]Rates
}

// NewCollector builds a Collector that calls current on every scrape to
// obtain the live rates for each circuit id it should report.
func NewCollector(current func() map[string]Rates) *Collector {
	return &Collector{
		desc: prometheus.NewDesc(
			"lludp_throttle_bps",
			"Current throttle rate in bits per second, by circuit and channel.",
			[]string{"circuit", "channel"},
			nil,
		),
		current: current,
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.desc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	for circuitID, rates := range c.current() {
		for ch := Channel(0); ch < numChannels; ch++ {
			metrics <- prometheus.MustNewConstMetric(
				c.desc, prometheus.GaugeValue, float64(rates[ch]), circuitID, ch.String(),
			)
		}
	}
}
