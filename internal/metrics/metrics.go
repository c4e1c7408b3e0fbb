package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveStreams tracks the number of registered SSE streams on this process.
	LiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "off2on_live_streams",
		Help: "Number of live SSE streams on this process",
	})

	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "off2on_events_delivered_total",
		Help: "Total number of events delivered to live streams",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "off2on_events_dropped_total",
		Help: "Total number of events dropped because no live stream existed",
	})

	MalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "off2on_malformed_messages_total",
		Help: "Total number of broker messages that failed to deserialize",
	})

	StreamWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "off2on_stream_write_failures_total",
		Help: "Total number of stream writes that failed and tore the stream down",
	})
)
