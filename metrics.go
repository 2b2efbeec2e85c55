package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счётчики кеша и задач. Регистрируются в собственном реестре,
// чтобы каждый запуск (и каждый тест) получал чистые значения.
type Metrics struct {
	Registry *prometheus.Registry

	reads       *prometheus.CounterVec // source = cache|store
	evictions   prometheus.Counter
	writes      prometheus.Counter
	taskResults *prometheus.CounterVec // kind = read|write, status = ok|failed
	storeExtent prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "positions_reads_total",
			Help: "Resolved reads by source",
		}, []string{"source"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "positions_cache_evictions_total",
			Help: "Cache entries evicted on overflow",
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "positions_writes_total",
			Help: "Position/value pairs applied to the store",
		}),
		taskResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "positions_tasks_total",
			Help: "Finished tasks by kind and status",
		}, []string{"kind", "status"}),
		storeExtent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "positions_store_extent",
			Help: "Current length of the position store",
		}),
	}
	m.Registry.MustRegister(m.reads, m.evictions, m.writes, m.taskResults, m.storeExtent)
	return m
}

func (m *Metrics) observeRead(src Source) {
	m.reads.WithLabelValues(src.label()).Inc()
}

func (m *Metrics) observeTask(kind TaskKind, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.taskResults.WithLabelValues(string(kind), status).Inc()
}
