package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-converter/internal/codec"
	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/filesystem"
	"media-converter/internal/handlers"
	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/quota"
	"media-converter/internal/startup"
	"media-converter/internal/streaming"
	"media-converter/internal/sweep"
	"media-converter/internal/workers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

// Reads are bounded by the upload ceilings, not by time, but a client that
// never finishes its headers is dropped.
const (
	readHeaderTimeout = 15 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
	collectInterval   = time.Minute
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT before anything allocates heavily
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	metrics.InitializeMetrics()
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":   config.UploadDir,
		"converted": config.ConvertedDir,
		"database":  config.DatabaseDir,
	}))
	buildInfo := startup.GetBuildInfo()
	metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion)

	// Database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	// Quota ledger
	var store quota.Store
	if config.QuotaStore == startup.QuotaStoreMemory {
		store = quota.NewMemoryStore()
	} else {
		store = db.QuotaStore()
	}
	limits := quota.Limits{Guest: config.GuestLimit, User: config.UserLimit}
	ledger := quota.NewLedger(store, limits, config.QuotaWindow)

	// Codecs
	codec.InitVips()
	ffmpeg := codec.NewFFmpeg("", "")
	document := codec.NewDocument("", 0)
	startup.LogCodecInit(toolStatuses(ffmpeg, document))

	// Conversion gate
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	concurrency := workers.Conversions(config.ConversionWorkers)
	orch := convert.New(
		convert.Config{
			OutputDir:      config.ConvertedDir,
			Limits:         limits,
			Quality:        config.ImageQuality,
			MaxGIFDuration: config.MaxGIFDuration,
			Concurrency:    concurrency,
		},
		convert.Codecs{
			Image:    codec.NewImage(),
			Video:    ffmpeg,
			Document: document,
		},
		ledger, db, monitor,
	)
	logging.Info("Conversion concurrency: %d", concurrency)

	// Background sweep of the shared storage area
	osFs := afero.NewOsFs()
	workDirs := []string{config.UploadDir, config.ConvertedDir}
	sweeper, err := sweep.New(osFs, sweep.Config{
		Dirs:      workDirs,
		Retention: config.SweepRetention,
		Schedule:  config.SweepSchedule,
	}, ledger, db)
	if err != nil {
		startup.LogFatal("Invalid sweep configuration: %v", err)
	}
	startup.LogSweepInit(config.SweepSchedule, config.SweepRetention, workDirs)
	if err := sweeper.Start(); err != nil {
		startup.LogFatal("Failed to start sweep: %v", err)
	}
	if last, err := db.GetLastSweepRun(context.Background()); err == nil && !last.IsZero() {
		logging.Info("Last sweep ran at %s", last.Format(time.RFC3339))
	}

	// Handlers and routing
	h := handlers.New(orch, db, ledger, handlers.Options{
		UploadDir: config.UploadDir,
		Limits:    limits,
		Stream:    streaming.DefaultConfig(),
	})

	resolver := identity.NewResolver(config.JWTSecret, config.TrustProxy)
	if !resolver.Enabled() {
		logging.Warn("JWT_SECRET not set: every caller is treated as a guest")
	}

	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	router.Use(resolver.Middleware)
	h.Register(router)

	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggingConfig.TrustProxy = config.TrustProxy
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		// Downloads enforce their own per-chunk deadlines.
		WriteTimeout: 0,
		IdleTimeout:  idleTimeout,
	}

	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(osFs, config.DatabasePath, map[string]string{
			"uploads":   config.UploadDir,
			"converted": config.ConvertedDir,
		}, collectInterval)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownDeps{
		srv:        srv,
		metricsSrv: metricsSrv,
		collector:  collector,
		sweeper:    sweeper,
		monitor:    monitor,
		ffmpeg:     ffmpeg,
		db:         db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// Wait for shutdown to finish closing resources
	<-shutdownDone
}

func toolStatuses(ffmpeg *codec.FFmpeg, document *codec.Document) []startup.ToolStatus {
	tools := []startup.ToolStatus{
		{Name: "libvips", Available: codec.IsVipsAvailable()},
	}
	if !codec.IsVipsAvailable() {
		tools[0].Detail = "falling back to imaging for png/jpg/webp; heic and svg unavailable"
	}

	ff := startup.ToolStatus{Name: "ffmpeg", Available: ffmpeg.Available()}
	if ff.Available {
		if v, err := startup.FFmpegVersion("ffmpeg"); err == nil {
			ff.Detail = v
		}
	} else {
		ff.Detail = "motion conversions will fail"
	}
	tools = append(tools, ff)

	pdf := startup.ToolStatus{Name: "pdftoppm", Available: document.Available()}
	if !pdf.Available {
		pdf.Detail = "document conversions will fail"
	}
	return append(tools, pdf)
}

var shutdownDone = make(chan struct{})

type shutdownDeps struct {
	srv        *http.Server
	metricsSrv *http.Server
	collector  *metrics.Collector
	sweeper    *sweep.Sweeper
	monitor    *memory.Monitor
	ffmpeg     *codec.FFmpeg
	db         *database.Database
}

func handleShutdown(deps shutdownDeps) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping sweep")
	deps.sweeper.Stop()
	startup.LogShutdownStepComplete("Sweep stopped")

	startup.LogShutdownStep("Stopping conversion gate")
	deps.monitor.Stop()
	startup.LogShutdownStepComplete("Conversion gate stopped")

	startup.LogShutdownStep("Terminating codec processes")
	deps.ffmpeg.Cleanup()
	codec.ShutdownVips()
	startup.LogShutdownStepComplete("Codecs shut down")

	if deps.metricsSrv != nil {
		startup.LogShutdownStep("Stopping metrics")
		deps.collector.Stop()
		if err := deps.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := deps.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
