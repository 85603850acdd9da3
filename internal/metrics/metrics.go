// Package metrics exposes Prometheus counters and gauges for the telemetry pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for FramesDroppedTotal.
const (
	DropUnknownMessage = "unknown_message"
	DropUnknownPage    = "unknown_page"
	DropNoIdentity     = "no_identity"
	DropChecksum       = "checksum"
	DropUnbound        = "unbound"
)

var (
	// FramesDecodedTotal counts complete frames cut from the byte stream.
	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_frames_decoded_total",
		Help: "Total number of frames decoded from the byte stream.",
	})

	// FramesUnwrappedTotal counts tunnel frames replaced by their inner frame.
	FramesUnwrappedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_frames_unwrapped_total",
		Help: "Total number of tunnel frames unwrapped to their inner frame.",
	})

	// BytesDiscardedTotal counts bytes thrown away while resynchronising.
	BytesDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_bytes_discarded_total",
		Help: "Total number of stream bytes discarded while searching for a sync byte.",
	})

	// FramesDroppedTotal counts frames the router could not dispatch, by reason.
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_frames_dropped_total",
		Help: "Total number of frames dropped without a dispatch, by reason.",
	}, []string{"reason"})

	// SamplesRejectedTotal counts out-of-range samples replaced by the last accepted value.
	SamplesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_samples_rejected_total",
		Help: "Total number of out-of-range samples, by measurement kind.",
	}, []string{"kind"})

	// OutliersSuppressedTotal counts samples held back by outlier tolerance.
	OutliersSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_outliers_suppressed_total",
		Help: "Total number of samples suppressed as outliers, by measurement kind.",
	}, []string{"kind"})

	// ChannelStaleTotal counts Live -> Stale transitions.
	ChannelStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_channel_stale_total",
		Help: "Total number of channels forced to Stale by the liveness monitor.",
	})

	// AlertsFiredTotal counts countdown alerts by threshold.
	AlertsFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_alerts_fired_total",
		Help: "Total number of segment countdown alerts fired, by threshold in seconds.",
	}, []string{"threshold"})

	// TicksTotal counts processed engine ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_ticks_total",
		Help: "Total number of engine ticks processed.",
	})

	// SessionState reports the current session state as its numeric value.
	SessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trainer_session_state",
		Help: "Current session state (0 idle, 1 countdown, 2 running, 3 paused, 4 finished).",
	})

	// BoundChannels reports how many tracks currently have a device bound.
	BoundChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trainer_bound_channels",
		Help: "Current number of tracks with a bound device.",
	})

	// StoreWritesTotal counts control store writes by result.
	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_store_writes_total",
		Help: "Total number of control store writes, by result.",
	}, []string{"result"})
)

// RecordDrop increments the dropped frame counter for reason.
func RecordDrop(reason string) {
	FramesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordStoreWrite increments the store write counter.
func RecordStoreWrite(err error) {
	if err != nil {
		StoreWritesTotal.WithLabelValues("error").Inc()
		return
	}
	StoreWritesTotal.WithLabelValues("ok").Inc()
}
