package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_searches_total",
			Help: "Total number of memory searches by mode and status.",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membridge_search_duration_seconds",
			Help:    "End-to-end search duration in seconds, embedding included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	MemoriesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_memories_stored_total",
			Help: "Total number of memories stored, by status.",
		},
		[]string{"status"},
	)

	EmbeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membridge_embedding_duration_seconds",
			Help:    "Embedding gateway call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionDigestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_session_digests_total",
			Help: "Session initializations, by outcome (digest or fresh_start).",
		},
		[]string{"outcome"},
	)

	BridgesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_bridges_written_total",
			Help: "Conversation bridges written at session close, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SearchesTotal,
		SearchDuration,
		MemoriesStoredTotal,
		EmbeddingDuration,
		SessionDigestsTotal,
		BridgesWrittenTotal,
	)
}
