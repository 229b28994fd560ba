// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidproxy"

var (
	// CacheOperationsTotal tracks resolution cache operations.
	// Labels:
	//   - operation: get, set
	//   - status: hit, miss, success, error
	//   - cache_type: memory, redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// CacheEvictionsTotal counts entries dropped because the memory cache was full.
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of capacity evictions from the memory cache",
		},
	)

	// UpstreamRequestsTotal tracks outbound calls.
	// Labels:
	//   - target: resolver, media
	//   - result: ok, or the failure kind
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream requests",
		},
		[]string{"target", "result"},
	)

	// UpstreamRequestDuration observes time until upstream response headers.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time until upstream response headers arrive",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	// StreamBytesTotal counts bytes relayed to callers.
	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Total number of bytes relayed by the streaming proxy",
		},
	)

	// StreamsTotal tracks how relays ended.
	// Labels:
	//   - result: completed, limit_exceeded, interrupted, client_gone
	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of relayed streams by outcome",
		},
		[]string{"result"},
	)

	// StoreQueriesTotal tracks video store operations.
	// Labels:
	//   - query_type: select, insert, count, aggregate
	//   - driver: mongo, postgres
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_queries_total",
			Help:      "Total number of video store queries",
		},
		[]string{"query_type", "driver"},
	)

	// ResolutionsTotal tracks resolve workflow outcomes.
	// Labels:
	//   - result: created, existing, failed
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of resolve requests by outcome",
		},
		[]string{"result"},
	)

	// QueueEventsTotal tracks resolution events through RabbitMQ.
	// Labels:
	//   - outcome: published, publish_failed, acked, retried, dropped, malformed
	QueueEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_events_total",
			Help:      "Total number of resolution events by outcome",
		},
		[]string{"outcome"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Queue event outcomes.
const (
	QueuePublished     = "published"
	QueuePublishFailed = "publish_failed"
	QueueAcked         = "acked"
	QueueRetried       = "retried"
	QueueDropped       = "dropped"
	QueueMalformed     = "malformed"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)

// Cache type constants.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Upstream target constants.
const (
	TargetResolver = "resolver"
	TargetMedia    = "media"
	ResultOK       = "ok"
)

// Stream outcome constants.
const (
	StreamCompleted     = "completed"
	StreamLimitExceeded = "limit_exceeded"
	StreamInterrupted   = "interrupted"
	StreamClientGone    = "client_gone"
)

// Store query type constants.
const (
	StoreQuerySelect    = "select"
	StoreQueryInsert    = "insert"
	StoreQueryCount     = "count"
	StoreQueryAggregate = "aggregate"
)

// Store driver constants.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Resolution outcome constants.
const (
	ResolutionCreated  = "created"
	ResolutionExisting = "existing"
	ResolutionFailed   = "failed"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
