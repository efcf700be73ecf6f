package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*Collector)(nil)

var (
	compilesDesc = prometheus.NewDesc(
		"rungen_pipeline_compiles_total",
		"Total number of compiles started",
		nil, nil)

	failuresDesc = prometheus.NewDesc(
		"rungen_pipeline_failures_total",
		"Total number of failed compiles, loads and constructions",
		nil, nil)

	loadsDesc = prometheus.NewDesc(
		"rungen_pipeline_loads_total",
		"Total number of compiled units loaded",
		nil, nil)

	constructsDesc = prometheus.NewDesc(
		"rungen_pipeline_constructs_total",
		"Total number of instances constructed",
		nil, nil)

	compileSecondsDesc = prometheus.NewDesc(
		"rungen_pipeline_compile_seconds_total",
		"Total time spent in the toolchain",
		nil, nil)
)

// Collector exports pipeline counters to Prometheus.
type Collector struct {
	p *Pipeline
}

// NewCollector returns a collector over p's counters.
func NewCollector(p *Pipeline) *Collector {
	return &Collector{p: p}
}

// Describe returns all descriptions of the collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- compilesDesc
	ch <- failuresDesc
	ch <- loadsDesc
	ch <- constructsDesc
	ch <- compileSecondsDesc
}

// Collect returns the current state of all metrics of the collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.p.Stats()
	ch <- prometheus.MustNewConstMetric(compilesDesc, prometheus.CounterValue, float64(s.Compiles))
	ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(s.Failures))
	ch <- prometheus.MustNewConstMetric(loadsDesc, prometheus.CounterValue, float64(s.Loads))
	ch <- prometheus.MustNewConstMetric(constructsDesc, prometheus.CounterValue, float64(s.Constructs))
	ch <- prometheus.MustNewConstMetric(compileSecondsDesc, prometheus.CounterValue, s.CompileTime.Seconds())
}
