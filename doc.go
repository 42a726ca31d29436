// Package main provides the entry point for the media converter service.
//
// The service accepts an uploaded image, video or PDF, converts it to a
// requested format with libvips, ffmpeg or pdftoppm, and streams the result
// back. Every caller is admitted against a rolling per-identity byte quota
// before any work is done.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  2. Configuration Loading: Reads .env and environment variables, checks directories
//  3. Database Initialization: Opens SQLite for history, quota and metadata
//  4. Component Initialization:
//     - Quota ledger over SQLite or an in-memory store
//     - Codecs: libvips (imaging fallback), ffmpeg/ffprobe, pdftoppm
//     - Memory Monitor: holds new codec runs under heap pressure
//     - Sweep: removes stale files from the work directories on a cron schedule
//     - Metrics Collector: samples work directory and database sizes
//  5. HTTP Server Setup: API server plus a separate Prometheus server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Configuration
//
// See internal/startup for the full list of environment variables. The most
// important are PORT, WORK_DIR, DATABASE_DIR, GUEST_LIMIT_MB, USER_LIMIT_MB
// and JWT_SECRET.
package main
