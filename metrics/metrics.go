// Package metrics defines the prometheus metric types shared by the
// transactor, the event monitor, and the executor.
//
// When adding new operations, these are the helpful values to track:
//   - things coming into or going out of the system: requests, dumps, events.
//   - the success or error status of any of the above.
//   - the distribution of processing latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestLatency tracks the latency of a single transactor Request
	// call, from send to the terminating DONE/ACK/ERROR message.
	RequestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "netctl_request_latency_seconds",
			Help: "nlsock.Socket.Request latency distribution (seconds)",
			Buckets: []float64{
				0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
			},
		},
	)

	// PollingLatency tracks the time a single nlmonitor.Monitor.Poll call
	// spends draining pending datagrams.
	PollingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netctl_poll_latency_seconds",
			Help:    "nlmonitor.Monitor.Poll latency distribution (seconds)",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	// EventCount counts dispatched nlmonitor events by kind.
	EventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netctl_event_total",
			Help: "Number of monitor events dispatched, by event kind.",
		}, []string{"kind"})

	// ErrorCount measures the number of errors encountered, by subsystem.
	//
	// Example usage:
	//   metrics.ErrorCount.With(prometheus.Labels{"type": "bad_seq"}).Inc()
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netctl_error_total",
			Help: "The total number of errors encountered, by type.",
		}, []string{"type"})

	// DumpSizeHistogram tracks the number of objects returned by a single
	// List/dump operation, by object kind (link, addr, route, ...).
	DumpSizeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "netctl_dump_size",
			Help: "Number of objects returned by a dump, by object kind.",
			Buckets: []float64{
				1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 4096,
			},
		}, []string{"kind"})
)
