// Package metrics provides Prometheus collectors for the assistant pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "itark"

// Label values shared by callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// descriptionRequestsTotal counts description requests by mode and outcome.
	descriptionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "description_requests_total",
			Help:      "Total number of description requests sent to the vision model",
		},
		[]string{"mode", "status"}, // status: success, rate_limited, network, invalid_response, discarded
	)

	// descriptionDuration is a histogram of vision call latency.
	descriptionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "description_duration_seconds",
			Help:      "Duration of vision model calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"mode"},
	)

	// triggersDroppedTotal counts triggers dropped because a request of the
	// same mode was still pending.
	triggersDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Total number of auto ticks or questions dropped while a request was pending",
		},
		[]string{"mode"},
	)

	// framesTotal counts camera frames.
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of camera frames by outcome",
		},
		[]string{"status"}, // status: captured, dropped, failed
	)

	// ttsAttemptsTotal counts speech synthesis attempts per engine.
	ttsAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_attempts_total",
			Help:      "Total number of text-to-speech attempts by engine",
		},
		[]string{"engine", "status"},
	)

	// listenTotal counts voice input sessions by result.
	listenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listen_total",
			Help:      "Total number of voice input sessions by result",
		},
		[]string{"result"}, // result: transcribed, no_speech, recognition_error, busy
	)

	// speechQueueDepth is the number of utterances waiting to be spoken.
	speechQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speech_queue_depth",
			Help:      "Number of utterances waiting for playback",
		},
	)

	allMetrics = []prometheus.Collector{
		descriptionRequestsTotal,
		descriptionDuration,
		triggersDroppedTotal,
		framesTotal,
		ttsAttemptsTotal,
		listenTotal,
		speechQueueDepth,
	}
)

// RecordDescription records a finished vision call.
func RecordDescription(mode, status string, durationSeconds float64) {
	descriptionRequestsTotal.WithLabelValues(mode, status).Inc()
	descriptionDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordTriggerDropped records an auto tick or question dropped while busy.
func RecordTriggerDropped(mode string) {
	triggersDroppedTotal.WithLabelValues(mode).Inc()
}

// RecordFrame records a camera frame outcome.
func RecordFrame(status string) {
	framesTotal.WithLabelValues(status).Inc()
}

// RecordTTSAttempt records one engine attempt.
func RecordTTSAttempt(engine, status string) {
	ttsAttemptsTotal.WithLabelValues(engine, status).Inc()
}

// RecordListen records the result of a voice input session.
func RecordListen(result string) {
	listenTotal.WithLabelValues(result).Inc()
}

// SetSpeechQueueDepth records the current speech queue length.
func SetSpeechQueueDepth(n int) {
	speechQueueDepth.Set(float64(n))
}
