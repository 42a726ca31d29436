package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "quota_charge", "quota_get", "quota_purge",
		"history_append", "history_list", "history_count", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, class := range []string{"image", "motion", "document", "unknown"} {
		for _, status := range []string{"delivered", "rejected", "failed"} {
			ConversionsTotal.WithLabelValues(class, status)
		}
		ConversionDuration.WithLabelValues(class)
	}

	codecOps := map[string][]string{
		"vips":     {"convert"},
		"imaging":  {"convert"},
		"ffmpeg":   {"convert"},
		"ffprobe":  {"probe"},
		"pdftoppm": {"rasterize"},
		"fpdf":     {"assemble"},
	}
	for codec, ops := range codecOps {
		for _, op := range ops {
			CodecInvocationsTotal.WithLabelValues(codec, op, "success")
			CodecInvocationsTotal.WithLabelValues(codec, op, "error")
			CodecDuration.WithLabelValues(codec, op)
		}
	}

	for _, tier := range []string{"guest", "user", "admin"} {
		for _, decision := range []string{"admitted", "denied", "error"} {
			QuotaAdmissionsTotal.WithLabelValues(tier, decision)
		}
		UploadBytesTotal.WithLabelValues(tier)
	}

	for _, status := range []string{"success", "error"} {
		SweepRunsTotal.WithLabelValues(status)
	}

	for _, dir := range []string{"uploads", "converted"} {
		WorkDirFiles.WithLabelValues(dir)
		WorkDirBytes.WithLabelValues(dir)
	}

	for _, op := range []string{"stat", "open"} {
		for _, volume := range []string{"uploads", "converted"} {
			FilesystemStaleErrors.WithLabelValues(op, volume)
		}
	}
}
