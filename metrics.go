package lockfree

import "github.com/prometheus/client_golang/prometheus"

// MapCollector is a prometheus.Collector exposing a Map's diagnostic
// counters. Unlike the package-level init()/MustRegister singletons
// common in this corpus's server code, a Map is a reusable value type —
// more than one instance can exist in a process — so registration is left
// to the caller (via WithRegisterer, or by registering the Collector
// returned by (*Map[V]).Collector directly).
type MapCollector[V any] struct {
	m *Map[V]

	size       *prometheus.Desc
	accessSize *prometheus.Desc
	content    *prometheus.Desc
	resizes    *prometheus.Desc
}

func newMapCollector[V any](m *Map[V]) *MapCollector[V] {
	return &MapCollector[V]{
		m:          m,
		size:       prometheus.NewDesc("lockfree_map_size", "Current logical bucket modulus.", nil, nil),
		accessSize: prometheus.NewDesc("lockfree_map_access_size", "Current access trie capacity.", nil, nil),
		content:    prometheus.NewDesc("lockfree_map_content", "Approximate live element count.", nil, nil),
		resizes:    prometheus.NewDesc("lockfree_map_resizes_total", "Resize operations performed, by kind.", []string{"kind"}, nil),
	}
}

func (c *MapCollector[V]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.accessSize
	ch <- c.content
	ch <- c.resizes
}

func (c *MapCollector[V]) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(c.m.size.Load()))
	ch <- prometheus.MustNewConstMetric(c.accessSize, prometheus.GaugeValue, float64(c.m.accessSize.Load()))
	ch <- prometheus.MustNewConstMetric(c.content, prometheus.GaugeValue, float64(c.m.content.Load()))
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(c.m.metrics.resizeFastPath.Load()), "fast_path")
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(c.m.metrics.resizeGrowTrie.Load()), "grow_trie")
}
