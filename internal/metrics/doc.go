// Package metrics provides Prometheus instrumentation for the media-converter
// application.
//
// All metrics are registered with promauto at package init and are prefixed
// with "media_converter_". Call InitializeMetrics once at startup so that the
// expected label combinations appear on the first scrape.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - UploadBytesTotal: bytes received per identity tier
//
// ## Conversion Metrics
//
//   - ConversionsTotal: requests by media class and outcome
//   - ConversionDuration: end-to-end time by media class
//   - ConversionsInProgress, ConversionOutputBytes, HistoryWriteErrors,
//     ArtifactCleanupErrors
//
// ## Codec Metrics
//
//   - CodecInvocationsTotal and CodecDuration by codec and operation
//     (vips, imaging, ffmpeg, ffprobe, pdftoppm, fpdf)
//
// ## Quota Metrics
//
//   - QuotaAdmissionsTotal: admitted, denied and error decisions per tier
//   - QuotaRecordsPurged: expired ledger rows removed
//
// ## Sweep Metrics
//
//   - SweepRunsTotal, SweepFilesRemoved, SweepBytesReclaimed,
//     SweepLastRunTimestamp, SweepLastRunDuration
//
// ## Database, Work Directory and Memory Metrics
//
// These gauges are sampled by a Collector on an interval rather than updated
// inline:
//   - DBSizeBytes (main, wal, shm)
//   - WorkDirFiles and WorkDirBytes (uploads, converted)
//   - GoHeapAllocBytes
//
// MemoryUsageRatio, MemoryPaused and MemoryGCPauses are maintained by the
// memory monitor.
//
// # Usage
//
//	metrics.InitializeMetrics()
//	collector := metrics.NewCollector(afero.NewOsFs(), dbPath, dirs, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
