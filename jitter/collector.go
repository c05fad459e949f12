package jitter

import "github.com/prometheus/client_golang/prometheus"

// Source supplies the set of Meters a Collector should export, and
// each peer's current ring buffer high-water bucket, both keyed by a
// stable per-peer label (e.g. the peer's fader index as a string).
type Source interface {
	Meters() map[string]*Meter
	HighWater() map[string]uint8
}

// collector exports each peer's Meter as three gauges plus the
// receive buffer's high-water bucket, grounded on the const-metric
// Collector shape: a fixed set of prometheus.Desc fields populated
// lazily in Collect rather than cached per peer.
type collector struct {
	source Source

	packetRateDesc *prometheus.Desc
	lossRateDesc   *prometheus.Desc
	damageRateDesc *prometheus.Desc
	highWaterDesc  *prometheus.Desc
}

// NewCollector returns a prometheus.Collector exposing the packet,
// loss and damage rates plus the receive buffer high-water bucket of
// every peer the Source currently reports.
func NewCollector(source Source) prometheus.Collector {
	return &collector{
		source: source,
		packetRateDesc: prometheus.NewDesc(
			"jam_jitter_packet_rate",
			"Smoothed fraction of ticks delivering a packet",
			[]string{"peer"}, nil),
		lossRateDesc: prometheus.NewDesc(
			"jam_jitter_loss_rate",
			"Smoothed fraction of ticks losing a sequence slot, concealed or not",
			[]string{"peer"}, nil),
		damageRateDesc: prometheus.NewDesc(
			"jam_jitter_damage_rate",
			"Smoothed fraction of ticks where a lost sequence slot could not be concealed by FEC",
			[]string{"peer"}, nil),
		highWaterDesc: prometheus.NewDesc(
			"jam_jitter_buffer_high_water",
			"Receive buffer high-water bucket: 0 under, 1 at, 2 over the jitter limit",
			[]string{"peer"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetRateDesc
	ch <- c.lossRateDesc
	ch <- c.damageRateDesc
	ch <- c.highWaterDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	highWater := c.source.HighWater()
	for peer, meter := range c.source.Meters() {
		ch <- prometheus.MustNewConstMetric(c.packetRateDesc, prometheus.GaugeValue, meter.PacketRate(), peer)
		ch <- prometheus.MustNewConstMetric(c.lossRateDesc, prometheus.GaugeValue, meter.LossRate(), peer)
		ch <- prometheus.MustNewConstMetric(c.damageRateDesc, prometheus.GaugeValue, meter.DamageRate(), peer)
		ch <- prometheus.MustNewConstMetric(c.highWaterDesc, prometheus.GaugeValue, float64(highWater[peer]), peer)
	}
}
