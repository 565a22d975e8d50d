// Package metrics exposes Prometheus collectors for the protocol engine.
//
// A Collector owns its registry so several clients (and tests) never collide
// on the global default registerer. A nil *Collector is valid and records
// nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "llclient"
	subsystem = "stream"
)

// Frame kinds used as label values
const (
	KindData    = "data"
	KindControl = "control"
)

// Collector holds the engine metrics
type Collector struct {
	registry *prometheus.Registry

	framesReceived   *prometheus.CounterVec // By kind: data, control
	bytesReceived    prometheus.Counter
	frameSize        prometheus.Histogram
	controlMessages  *prometheus.CounterVec // By message type
	controlErrors    *prometheus.CounterVec // By reason
	samplesReceived  *prometheus.CounterVec // By channel name
	droppedData      prometheus.Counter
	controlFramesOut *prometheus.CounterVec // By command

	subscribedChannels prometheus.Gauge
	availableChannels  prometheus.Gauge
	pendingChannels    prometheus.Gauge
	acquiring          prometheus.Gauge
	connected          prometheus.Gauge
}

// New creates a collector with its own registry, including the Go runtime
// and process collectors
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total frames reassembled from the stream",
		}, []string{"kind"}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total frame bytes received, headers included",
		}),

		frameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_size_bytes",
			Help:      "Size of received frames",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 10), // 8 B to 2 MiB
		}),

		controlMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "control_messages_total",
			Help:      "Total inbound control messages by type",
		}, []string{"type"}),

		controlErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "control_errors_total",
			Help:      "Inbound control conditions that were reported and dropped",
		}, []string{"reason"}), // reason: malformed, unknown, duplicate_available, confirm_unavailable, confirm_unmatched, confirm_invalid_id

		samplesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "samples_received_total",
			Help:      "Total samples received per channel",
		}, []string{"channel"}),

		droppedData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_data_frames_total",
			Help:      "Data frames received for ids that are not subscribed",
		}),

		controlFramesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "control_frames_sent_total",
			Help:      "Outbound control frames by command",
		}, []string{"type"}),

		subscribedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscribed_channels",
			Help:      "Channels currently subscribed",
		}),

		availableChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "available_channels",
			Help:      "Channels the server currently offers",
		}),

		pendingChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_channels",
			Help:      "Subscribe requests awaiting confirmation",
		}),

		acquiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acquiring",
			Help:      "1 while the server reports acquisition on",
		}),

		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connected",
			Help:      "1 while the stream connection is open",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.framesReceived,
		c.bytesReceived,
		c.frameSize,
		c.controlMessages,
		c.controlErrors,
		c.samplesReceived,
		c.droppedData,
		c.controlFramesOut,
		c.subscribedChannels,
		c.availableChannels,
		c.pendingChannels,
		c.acquiring,
		c.connected,
	)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// FrameReceived records one reassembled frame
func (c *Collector) FrameReceived(kind string, length uint32) {
	if c == nil {
		return
	}
	c.framesReceived.WithLabelValues(kind).Inc()
	c.bytesReceived.Add(float64(length))
	c.frameSize.Observe(float64(length))
}

// ControlMessage records an inbound control message by type
func (c *Collector) ControlMessage(msgType string) {
	if c == nil {
		return
	}
	c.controlMessages.WithLabelValues(msgType).Inc()
}

// ControlError records a reported control condition
func (c *Collector) ControlError(reason string) {
	if c == nil {
		return
	}
	c.controlErrors.WithLabelValues(reason).Inc()
}

// SamplesReceived adds n samples to a channel's counter
func (c *Collector) SamplesReceived(channel string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.samplesReceived.WithLabelValues(channel).Add(float64(n))
}

// DataDropped records a data frame for an id that is not subscribed
func (c *Collector) DataDropped() {
	if c == nil {
		return
	}
	c.droppedData.Inc()
}

// ControlSent records an outbound control frame
func (c *Collector) ControlSent(command string) {
	if c == nil {
		return
	}
	c.controlFramesOut.WithLabelValues(command).Inc()
}

// SetChannelCounts updates the registry size gauges
func (c *Collector) SetChannelCounts(available, pending, subscribed int) {
	if c == nil {
		return
	}
	c.availableChannels.Set(float64(available))
	c.pendingChannels.Set(float64(pending))
	c.subscribedChannels.Set(float64(subscribed))
}

// SetAcquiring updates the acquisition gauge
func (c *Collector) SetAcquiring(on bool) {
	if c == nil {
		return
	}
	c.acquiring.Set(boolToFloat(on))
}

// SetConnected updates the connection gauge
func (c *Collector) SetConnected(on bool) {
	if c == nil {
		return
	}
	c.connected.Set(boolToFloat(on))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
