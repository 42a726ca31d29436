package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/memory"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Quota store backends.
const (
	QuotaStoreSQLite = "sqlite"
	QuotaStoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	WorkDir     string
	DatabaseDir string

	// Per-request and per-window ceilings in bytes. Admin is unbounded.
	GuestLimit int64
	UserLimit  int64

	QuotaWindow    time.Duration
	QuotaStore     string
	MaxGIFDuration time.Duration
	ImageQuality   int

	SweepSchedule  string
	SweepRetention time.Duration

	JWTSecret  string
	TrustProxy bool

	ConversionWorkers int

	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	UploadDir    string
	ConvertedDir string
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file (or ENV_FILE) is read first; variables already set in the
// environment win.
func LoadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	envErr := loadEnvFile(envFile)

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch {
	case envErr != nil:
		logging.Warn("  Failed to load %s: %v", envFile, envErr)
	case fileExists(envFile):
		logging.Info("  Loaded environment from %s", envFile)
	}

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		WorkDir:         getEnv("WORK_DIR", "/data/work"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/data/db"),
		GuestLimit:      getEnvMegabytes("GUEST_LIMIT_MB", 100),
		UserLimit:       getEnvMegabytes("USER_LIMIT_MB", 800),
		QuotaWindow:     getEnvDuration("QUOTA_WINDOW", 24*time.Hour),
		QuotaStore:      strings.ToLower(getEnv("QUOTA_STORE", QuotaStoreSQLite)),
		MaxGIFDuration:  getEnvDuration("MAX_GIF_DURATION", 30*time.Second),
		ImageQuality:    getEnvInt("IMAGE_QUALITY", 85),
		SweepSchedule:   getEnv("SWEEP_SCHEDULE", "0 */12 * * *"),
		SweepRetention:  getEnvDuration("SWEEP_RETENTION", 24*time.Hour),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TrustProxy:      getEnvBool("TRUST_PROXY", false),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}
	config.ConversionWorkers = getEnvInt("CONVERSION_WORKERS", 0)

	if config.QuotaStore != QuotaStoreSQLite && config.QuotaStore != QuotaStoreMemory {
		logging.Warn("  Invalid QUOTA_STORE %q, using default: %s", config.QuotaStore, QuotaStoreSQLite)
		config.QuotaStore = QuotaStoreSQLite
	}
	if config.ImageQuality < 1 || config.ImageQuality > 100 {
		logging.Warn("  IMAGE_QUALITY %d out of range (1-100), using default: 85", config.ImageQuality)
		config.ImageQuality = 85
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  WORK_DIR:            %s", config.WorkDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  GUEST_LIMIT_MB:      %s", humanize.IBytes(uint64(config.GuestLimit)))
	logging.Info("  USER_LIMIT_MB:       %s", humanize.IBytes(uint64(config.UserLimit)))
	logging.Info("  QUOTA_WINDOW:        %v", config.QuotaWindow)
	logging.Info("  QUOTA_STORE:         %s", config.QuotaStore)
	logging.Info("  MAX_GIF_DURATION:    %v", config.MaxGIFDuration)
	logging.Info("  IMAGE_QUALITY:       %d", config.ImageQuality)
	logging.Info("  SWEEP_SCHEDULE:      %s", config.SweepSchedule)
	logging.Info("  SWEEP_RETENTION:     %v", config.SweepRetention)
	logging.Info("  JWT_SECRET:          %s", secretState(config.JWTSecret))
	logging.Info("  TRUST_PROXY:         %v", config.TrustProxy)
	logging.Info("  CONVERSION_WORKERS:  %s", workersString(config.ConversionWorkers))
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if config.WorkDir, err = filepath.Abs(config.WorkDir); err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	if config.DatabaseDir, err = filepath.Abs(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	config.UploadDir = filepath.Join(config.WorkDir, "uploads")
	config.ConvertedDir = filepath.Join(config.WorkDir, "converted")
	config.DatabasePath = filepath.Join(config.DatabaseDir, "converter.db")

	for _, d := range []struct{ path, name string }{
		{config.UploadDir, "uploads"},
		{config.ConvertedDir, "converted"},
		{config.DatabaseDir, "database"},
	} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %-10s %s", d.name+":", d.path)
	}

	return config, nil
}

func loadEnvFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	return godotenv.Load(path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func secretState(secret string) string {
	if secret == "" {
		return "(unset, all callers are guests)"
	}
	return "(set)"
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if !result.Configured {
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}

	logging.Info("  Source:          %s", result.Source)
	logging.Info("  GOMEMLIMIT:      %s", humanize.IBytes(uint64(result.GoMemLimit)))
	if result.ContainerLimit > 0 {
		logging.Info("  Container limit: %s", humanize.IBytes(uint64(result.ContainerLimit)))
		logging.Info("  Ratio:           %.0f%%", result.Ratio*100)
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// ToolStatus reports whether an external conversion backend is usable.
type ToolStatus struct {
	Name      string
	Available bool
	Detail    string
}

// LogCodecInit logs which conversion backends are available. Missing tools
// only disable the matching conversions.
func LogCodecInit(tools []ToolStatus) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	for _, t := range tools {
		if t.Available {
			if t.Detail != "" {
				logging.Info("  [OK] %-9s %s", t.Name, t.Detail)
			} else {
				logging.Info("  [OK] %s", t.Name)
			}
			continue
		}
		logging.Warn("  [--] %-9s %s", t.Name, enabledString(false))
		if t.Detail != "" {
			logging.Warn("       %s", t.Detail)
		}
	}
}

// FFmpegVersion returns the first line of `ffmpeg -version`.
func FFmpegVersion(ffmpegPath string) (string, error) {
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", ffmpegPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

// LogSweepInit logs the background sweep configuration.
func LogSweepInit(schedule string, retention time.Duration, dirs []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SWEEP INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Schedule:  %s", schedule)
	logging.Info("  Retention: %v", retention)
	for _, d := range dirs {
		logging.Info("  Watching:  %s", d)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			label := group
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	logging.Info("    Static file logging: %s", onOff(logStaticFiles, "LOG_STATIC_FILES"))
	logging.Info("    Health check logging: %s", onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(on bool, key string) string {
	if on {
		return "ON"
	}
	return fmt.Sprintf("OFF (set %s=true to enable)", key)
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api/convert", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ______                           __
   /  |/  /__  ____/ (_)___ _   / ____/___  ____ _   _____  _____/ /_
  / /|_/ / _ \/ __  / / __ '/  / /   / __ \/ __ \ | / / _ \/ ___/ __/
 / /  / /  __/ /_/ / / /_/ /  / /___/ /_/ / / / / |/ /  __/ /  / /_
/_/  /_/\___/\__,_/_/\__,_/   \____/\____/_/ /_/|___/\___/_/   \__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvMegabytes reads a whole number of mebibytes and returns bytes.
func getEnvMegabytes(key string, defaultMB int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultMB * 1024 * 1024
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid size for %s: %q, using default: %d MB", key, value, defaultMB)
		return defaultMB * 1024 * 1024
	}
	return parsed * 1024 * 1024
}
