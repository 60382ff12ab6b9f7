// Package prometheus provides Prometheus metrics for streaming chat calls and live voice sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regis"

// Stream outcomes used as the "outcome" label.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeStall    = "stall"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

// Audio frame directions and statuses.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"

	FrameOK      = "ok"
	FrameDropped = "dropped"
	FrameError   = "error"
)

var (
	// streamDuration is a histogram of supervised stream duration in seconds.
	streamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of supervised streaming calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"provider", "outcome"},
	)

	// streamsTotal is a counter of supervised streams by terminal outcome.
	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of supervised streaming calls",
		},
		[]string{"provider", "outcome"},
	)

	// streamTokensTotal counts token chunks delivered to callers.
	streamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_tokens_total",
			Help:      "Total number of token chunks delivered",
		},
		[]string{"provider"},
	)

	// streamFirstToken is a histogram of time to first token.
	streamFirstToken = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_first_token_seconds",
			Help:      "Time from request start to first token in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// fallbacksTotal counts provider fallbacks.
	fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Total number of fallbacks from one provider to the other",
		},
		[]string{"from", "to", "status"}, // status: success, error
	)

	// liveSessionsActive is a gauge of open live sessions.
	liveSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of currently open live voice sessions",
		},
	)

	// liveSessionsTotal counts live session terminations by reason.
	liveSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live voice sessions by close reason",
		},
		[]string{"reason"},
	)

	// audioFramesTotal counts live audio frames by direction and status.
	audioFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Total number of live audio frames",
		},
		[]string{"direction", "status"},
	)

	// historyStoreErrorsTotal counts failed history store operations.
	historyStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_store_errors_total",
			Help:      "Total number of failed chat history store operations",
		},
		[]string{"operation"}, // operation: load, save, delete
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		streamDuration,
		streamsTotal,
		streamTokensTotal,
		streamFirstToken,
		fallbacksTotal,
		liveSessionsActive,
		liveSessionsTotal,
		audioFramesTotal,
		historyStoreErrorsTotal,
	}
)

// Collectors returns every metric defined by this package.
func Collectors() []prometheus.Collector {
	out := make([]prometheus.Collector, len(allMetrics))
	copy(out, allMetrics)
	return out
}

// RecordStream records a finished supervised stream.
func RecordStream(provider, outcome string, durationSeconds float64) {
	streamDuration.WithLabelValues(provider, outcome).Observe(durationSeconds)
	streamsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordStreamTokens records delivered token chunks.
func RecordStreamTokens(provider string, chunks int) {
	if chunks > 0 {
		streamTokensTotal.WithLabelValues(provider).Add(float64(chunks))
	}
}

// RecordFirstToken records the latency of the first token.
func RecordFirstToken(provider string, seconds float64) {
	streamFirstToken.WithLabelValues(provider).Observe(seconds)
}

// RecordFallback records a fallback attempt from one provider to another.
func RecordFallback(from, to, status string) {
	fallbacksTotal.WithLabelValues(from, to, status).Inc()
}

// RecordLiveSessionStart records a live session reaching the open state.
func RecordLiveSessionStart() {
	liveSessionsActive.Inc()
}

// RecordLiveSessionEnd records an open live session being torn down.
func RecordLiveSessionEnd(reason string) {
	liveSessionsActive.Dec()
	liveSessionsTotal.WithLabelValues(reason).Inc()
}

// RecordLiveSessionFailure records a session that never reached the open state.
func RecordLiveSessionFailure(reason string) {
	liveSessionsTotal.WithLabelValues(reason).Inc()
}

// RecordAudioFrame records one live audio frame.
func RecordAudioFrame(direction, status string) {
	audioFramesTotal.WithLabelValues(direction, status).Inc()
}

// RecordHistoryStoreError records a failed history store operation.
func RecordHistoryStoreError(operation string) {
	historyStoreErrorsTotal.WithLabelValues(operation).Inc()
}
