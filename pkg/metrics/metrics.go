package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_requests_total",
			Help: "Total number of compression requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pngquant_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Compression metrics
	CompressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_compressions_total",
			Help: "Total number of PNG compressions",
		},
		[]string{"status"}, // success, error, cancelled, quality, cached
	)

	CompressionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pngquant_compression_duration_seconds",
			Help:    "Compression duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"speed"},
	)

	CompressionBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pngquant_compression_bytes",
			Help:    "Compression input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760},
		},
		[]string{"direction"}, // input, output
	)

	PaletteSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pngquant_palette_size",
			Help:    "Number of colors in emitted palettes",
			Buckets: []float64{2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	Quality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pngquant_quality",
			Help:    "Evaluated quality (0-100) of emitted images",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pngquant_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pngquant_worker_pool_active_jobs",
			Help: "Current number of active compression jobs",
		},
	)

	WorkerPoolRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pngquant_worker_pool_retries_total",
			Help: "Total number of submissions retried because the queue was full",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pngquant_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pngquant_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)

	// Memory metrics
	MemoryPoolHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_memory_pool_hits_total",
			Help: "Total number of buffer pool hits",
		},
		[]string{"size"}, // small, medium, large, xlarge
	)

	MemoryPoolMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_memory_pool_misses_total",
			Help: "Total number of buffer pool misses",
		},
		[]string{"size"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pngquant_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pngquant_cache_bytes",
			Help: "Bytes held by the result cache after the last prune",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordCompression records a compression attempt
func RecordCompression(status, speed string, duration float64, inputBytes, outputBytes int) {
	CompressionsTotal.WithLabelValues(status).Inc()
	CompressionDuration.WithLabelValues(speed).Observe(duration)
	CompressionBytes.WithLabelValues("input").Observe(float64(inputBytes))
	if outputBytes > 0 {
		CompressionBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordResult records the palette size and quality of an emitted image
func RecordResult(colors, quality int) {
	PaletteSize.Observe(float64(colors))
	Quality.Observe(float64(quality))
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordPoolRetry records a retried submission
func RecordPoolRetry() {
	WorkerPoolRetries.Inc()
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}

// RecordPoolHit records a buffer pool hit
func RecordPoolHit(size string) {
	MemoryPoolHits.WithLabelValues(size).Inc()
}

// RecordPoolMiss records a buffer pool miss
func RecordPoolMiss(size string) {
	MemoryPoolMisses.WithLabelValues(size).Inc()
}

// RecordCacheLookup records a result cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// UpdateCacheBytes updates the cache size gauge
func UpdateCacheBytes(n int64) {
	CacheBytes.Set(float64(n))
}
