// Package metrics exports server counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"shphttpd/internal/threadpool"
)

const namespace = "httpd"

// Snapshot is the state read on every scrape.
type Snapshot struct {
	Conns   int64
	Backlog int64
	Pool    threadpool.Stats
}

// Collector implements prometheus.Collector. Gauges and pool counters are read from a
// snapshot function at scrape time, responses are counted as they are sent.
type Collector struct {
	snapshot func() Snapshot

	conns     *prometheus.Desc
	backlog   *prometheus.Desc
	workers   *prometheus.Desc
	queued    *prometheus.Desc
	running   *prometheus.Desc
	submitted *prometheus.Desc
	rejected  *prometheus.Desc
	completed *prometheus.Desc

	responses *prometheus.CounterVec
}

// NewCollector returns a collector reading state from snapshot.
func NewCollector(snapshot func() Snapshot) *Collector {
	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &Collector{
		snapshot:  snapshot,
		conns:     desc("", "connections", "Live client connections."),
		backlog:   desc("", "backlog", "Ready connections waiting for room in the request queue."),
		workers:   desc("pool", "workers", "Worker goroutines."),
		queued:    desc("pool", "queued", "Requests waiting for a worker."),
		running:   desc("pool", "running", "Requests being processed."),
		submitted: desc("pool", "submitted_total", "Requests accepted by the queue."),
		rejected:  desc("pool", "rejected_total", "Hand-offs refused by a full queue."),
		completed: desc("pool", "completed_total", "Requests processed by workers."),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Responses sent, by status code.",
			},
			[]string{"code"},
		),
	}
}

// ObserveResponse counts one response with the given status code.
func (c *Collector) ObserveResponse(status int) {
	c.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.backlog
	ch <- c.workers
	ch <- c.queued
	ch <- c.running
	ch <- c.submitted
	ch <- c.rejected
	ch <- c.completed
	c.responses.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge(c.conns, float64(s.Conns))
	gauge(c.backlog, float64(s.Backlog))
	gauge(c.workers, float64(s.Pool.Workers))
	gauge(c.queued, float64(s.Pool.Queued))
	gauge(c.running, float64(s.Pool.Running))
	counter(c.submitted, s.Pool.Submitted)
	counter(c.rejected, s.Pool.Rejected)
	counter(c.completed, s.Pool.Completed)
	c.responses.Collect(ch)
}
