package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_dedup_messages_total",
		Help: "The total number of messages examined by the dedup engine",
	}, []string{"status"})

	DedupBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lantern_dedup_batch_duration_seconds",
		Help:    "Duration in seconds to deduplicate a batch",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	DedupOriginalityScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lantern_dedup_originality_score",
		Help:    "Originality scores assigned to deduplicated messages",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	DedupBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lantern_dedup_backlog_size",
		Help: "Number of messages awaiting a dedup pass",
	})

	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_embedding_requests_total",
		Help: "Total embedding requests by provider, model and status",
	}, []string{"provider", "model", "status"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lantern_embedding_latency_seconds",
		Help:    "Latency of embedding requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "model"})

	TranslationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_translation_requests_total",
		Help: "Total translation provider requests by status",
	}, []string{"provider", "model", "status"})

	TranslationBatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lantern_translation_batch_fallbacks_total",
		Help: "Batch translations that fell back to per-message calls after a segment mismatch",
	})

	TranslationCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_translation_cache_lookups_total",
		Help: "Translation cache lookups by result (hit or miss)",
	}, []string{"result"})

	TranslationInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lantern_translation_in_flight",
		Help: "Number of translation calls currently holding a semaphore permit",
	})

	TranslationBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lantern_translation_backlog_size",
		Help: "Number of messages pending translation by priority",
	}, []string{"priority"})

	TranslationTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_translation_tokens_total",
		Help: "Token usage for translation requests by direction (prompt or completion)",
	}, []string{"provider", "model", "direction"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_job_runs_total",
		Help: "Background job outcomes by job name and status",
	}, []string{"job", "status"})

	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lantern_job_duration_seconds",
		Help:    "Duration of background job runs including retries",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"job"})

	DeadLettersWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_dead_letters_total",
		Help: "Dead-letter entries persisted by job name",
	}, []string{"job"})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lantern_notifications_published_total",
		Help: "Best-effort notification publish attempts by status",
	}, []string{"status"})
)

// Metric label values shared across packages.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)
