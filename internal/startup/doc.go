// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. If a .env
// file exists in the working directory (or at ENV_FILE) it is loaded first;
// variables already present in the environment take precedence.
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - WORK_DIR: Shared storage area; uploads/ and converted/ live here (default: /data/work)
//   - DATABASE_DIR: Directory holding converter.db (default: /data/db)
//   - GUEST_LIMIT_MB, USER_LIMIT_MB: Tier ceilings in MB (default: 100, 800)
//   - QUOTA_WINDOW: Rolling admission window (default: 24h)
//   - QUOTA_STORE: sqlite or memory (default: sqlite)
//   - MAX_GIF_DURATION: Longest video accepted for GIF output (default: 30s)
//   - IMAGE_QUALITY: Lossy encoder quality 1-100 (default: 85)
//   - SWEEP_SCHEDULE: Cron expression for stale file reclamation (default: "0 */12 * * *")
//   - SWEEP_RETENTION: Age after which work files are reclaimed (default: 24h)
//   - JWT_SECRET: Identity token key; empty makes every caller a guest
//   - TRUST_PROXY: Use X-Forwarded-For for guest quota keys (default: false)
//   - CONVERSION_WORKERS: Concurrent codec runs (default: derived from CPUs)
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Invalid numbers and durations log a warning and fall back to the default.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
