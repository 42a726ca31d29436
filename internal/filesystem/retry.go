package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// VolumeResolver maps file paths to work area names for metric labels,
// using longest-prefix matching on absolute paths. Nested areas resolve to
// the innermost one.
type VolumeResolver struct {
	// mounts is sorted by path length descending so the first prefix hit is
	// the most specific area
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing slash (e.g. "/data/work/uploads/")
	name string // area label (e.g. "uploads")
}

// NewVolumeResolver creates a resolver from a map of area name to path.
//
//	NewVolumeResolver(map[string]string{
//	    "uploads":   "/data/work/uploads",
//	    "converted": "/data/work/converted",
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		// The trailing slash keeps /data/work/up from matching /data/work/uploads.
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, "/") {
			absPath += "/"
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	// Longest first, so "/data/work/uploads/" wins over "/data/work/".
	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the area name for path. Paths outside every configured
// area, and lookups on a nil resolver, return "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	// Appending "/" lets the area directory itself match its own mount.
	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+"/", mount.path) {
			return mount.name
		}
	}
	return "unknown"
}

// defaultResolver is set once at startup from the configured work areas.
var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the package-level resolver. Call once at
// startup.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retries of stale file handle errors. Only ESTALE
// is retried; every other error is returned on the first attempt.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this
	// operation. If nil, the default set at startup is used.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns 3 retries backing off from 50ms to 500ms,
// about a second of waiting in the worst case. That covers the attribute
// cache refresh on a typical NFS client.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// resolveVolume labels path with the config's resolver, or the package
// default when none is set.
func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// sleep is replaced in tests.
var sleep = time.Sleep

// isStale reports whether err is ESTALE (errno 116 on Linux), which NFS
// returns when a handle outlives a server-side change such as another
// replica replacing the file.
func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry runs fn, retrying only stale file handle errors with
// exponential backoff.
func withRetry[T any](op, path string, config RetryConfig, fn func(string) (T, error)) (T, error) {
	volume := config.resolveVolume(path)
	backoff := config.InitialBackoff

	var zero T
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		v, err := fn(path)
		if err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetries.WithLabelValues(op, volume, "success").Inc()
			}
			return v, nil
		}
		lastErr = err

		if !isStale(err) {
			return zero, err
		}
		metrics.FilesystemStaleErrors.WithLabelValues(op, volume).Inc()

		// No sleep after the final attempt.
		if attempt < config.MaxRetries {
			logging.Debug("Stale file handle on %s of %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			sleep(backoff)
			// Exponential backoff, capped.
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	metrics.FilesystemRetries.WithLabelValues(op, volume, "failure").Inc()
	return zero, lastErr
}

// StatWithRetry is os.Stat with retries on stale file handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, os.Stat)
}

// OpenWithRetry is os.Open with retries on stale file handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, os.Open)
}
