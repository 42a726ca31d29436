package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_upload_bytes_total",
			Help: "Total bytes received in uploads by tier",
		},
		[]string{"tier"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_conversions_total",
			Help: "Total number of conversion requests by media class and outcome (delivered, rejected, failed)",
		},
		[]string{"class", "status"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_conversion_duration_seconds",
			Help:    "End-to-end conversion duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"class"},
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_conversions_in_progress",
			Help: "Number of conversions currently running",
		},
	)

	ConversionOutputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_conversion_output_bytes_total",
			Help: "Total bytes of converted output by target format",
		},
		[]string{"target"},
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_history_write_errors_total",
			Help: "Total number of history records that failed to persist",
		},
	)

	ArtifactCleanupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_artifact_cleanup_errors_total",
			Help: "Total number of temporary artifacts that could not be removed",
		},
	)
)

// Codec metrics
var (
	CodecInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_codec_invocations_total",
			Help: "Total number of codec invocations by codec, operation and status",
		},
		[]string{"codec", "operation", "status"},
	)

	CodecDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_codec_duration_seconds",
			Help:    "Codec invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"codec", "operation"},
	)
)

// Quota metrics
var (
	QuotaAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_quota_admissions_total",
			Help: "Total number of quota admission decisions by tier",
		},
		[]string{"tier", "decision"}, // "admitted", "denied", "error"
	)

	QuotaRecordsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_quota_records_purged_total",
			Help: "Total number of expired quota records removed",
		},
	)
)

// Sweep metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_sweep_runs_total",
			Help: "Total number of work directory sweep runs",
		},
		[]string{"status"},
	)

	SweepFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_sweep_files_removed_total",
			Help: "Total number of stale files removed by the sweep",
		},
	)

	SweepBytesReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_sweep_bytes_reclaimed_total",
			Help: "Total bytes reclaimed by the sweep",
		},
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_sweep_last_run_timestamp",
			Help: "Unix timestamp of the last sweep run",
		},
	)

	SweepLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_sweep_last_run_duration_seconds",
			Help: "Duration of the last sweep run in seconds",
		},
	)
)

// Work directory metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_stale_errors_total",
			Help: "Stale file handle errors seen on the work directories",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retries_total",
			Help: "Filesystem operations that needed a retry, by final result",
		},
		[]string{"operation", "volume", "result"}, // result: "success", "failure"
	)

	WorkDirFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_workdir_files",
			Help: "Number of files in each work directory",
		},
		[]string{"dir"}, // "uploads", "converted"
	)

	WorkDirBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_workdir_bytes",
			Help: "Total size of each work directory in bytes",
		},
		[]string{"dir"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_paused",
			Help: "Whether new conversions are paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_memory_gc_pauses_total",
			Help: "Total number of times conversions were paused for memory pressure",
		},
	)

	GoHeapAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_go_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
