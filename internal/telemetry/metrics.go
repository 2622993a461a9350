// Package telemetry provides the Prometheus metrics murmur exports.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesReceived   *prometheus.CounterVec // by account, outcome
	GenerationAttempts *prometheus.CounterVec // by provider, outcome
	RepliesDelivered   *prometheus.CounterVec // by account, outcome
	ReactionsAdded     prometheus.Counter
	QuietStarts        prometheus.Counter

	// Histograms (seconds)
	GenerationDuration prometheus.Observer
	TaskDuration       prometheus.Observer

	// Gauges
	QueueDepth          *prometheus.GaugeVec // by channel
	CoolingCredentials  prometheus.Gauge
	ActiveChannelQueues prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_messages_received_total",
			Help: "Inbound messages by account and handling outcome",
		}, []string{"account", "outcome"})
		GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_generation_attempts_total",
			Help: "Provider calls by provider and outcome",
		}, []string{"provider", "outcome"})
		RepliesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_replies_total",
			Help: "Reply deliveries by account and outcome",
		}, []string{"account", "outcome"})
		ReactionsAdded = promauto.NewCounter(prometheus.CounterOpts{Name: "murmur_reactions_total", Help: "Reactions added to inbound messages"})
		QuietStarts = promauto.NewCounter(prometheus.CounterOpts{Name: "murmur_quiet_starts_total", Help: "Conversations started in quiet channels"})
		GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "murmur_generation_duration_seconds", Help: "Generation call duration including retries", Buckets: prometheus.DefBuckets})
		TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "murmur_task_duration_seconds", Help: "Queued task duration including pacing delays", Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60, 120}})
		QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "murmur_queue_depth", Help: "Pending tasks per channel"}, []string{"channel"})
		CoolingCredentials = promauto.NewGauge(prometheus.GaugeOpts{Name: "murmur_cooling_credentials", Help: "Credentials currently cooling"})
		ActiveChannelQueues = promauto.NewGauge(prometheus.GaugeOpts{Name: "murmur_active_channel_queues", Help: "Channels with a live queue worker"})
	})
}

// CountMessage records an inbound message outcome.
func CountMessage(account, outcome string) {
	if MessagesReceived != nil {
		MessagesReceived.WithLabelValues(account, outcome).Inc()
	}
}

// CountAttempt records a provider call outcome.
func CountAttempt(provider, outcome string) {
	if GenerationAttempts != nil {
		GenerationAttempts.WithLabelValues(provider, outcome).Inc()
	}
}

// CountReply records a delivery outcome.
func CountReply(account, outcome string) {
	if RepliesDelivered != nil {
		RepliesDelivered.WithLabelValues(account, outcome).Inc()
	}
}

// CountReaction records an added reaction.
func CountReaction() {
	if ReactionsAdded != nil {
		ReactionsAdded.Inc()
	}
}

// CountQuietStart records a quiet-channel conversation start.
func CountQuietStart() {
	if QuietStarts != nil {
		QuietStarts.Inc()
	}
}

// SetQueueDepth records the pending task count for channel. Zero removes
// the series so drained channels do not linger.
func SetQueueDepth(channel string, n int) {
	if QueueDepth == nil {
		return
	}
	if n == 0 {
		QueueDepth.DeleteLabelValues(channel)
		return
	}
	QueueDepth.WithLabelValues(channel).Set(float64(n))
}

// SetActiveQueues records how many channel workers are alive.
func SetActiveQueues(n int) {
	if ActiveChannelQueues != nil {
		ActiveChannelQueues.Set(float64(n))
	}
}

// SetCooling records the cooling-set size.
func SetCooling(n int) {
	if CoolingCredentials != nil {
		CoolingCredentials.Set(float64(n))
	}
}

// Observe records seconds on obs if non-nil.
func Observe(obs prometheus.Observer, seconds float64) {
	if obs != nil {
		obs.Observe(seconds)
	}
}
