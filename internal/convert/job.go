package convert

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// UploadedArtifact is a file received from the caller. The orchestrator owns
// it for the lifetime of one job and deletes it when the job ends.
type UploadedArtifact struct {
	Path         string
	OriginalName string
	Size         int64
	MimeType     string
}

// ConvertedArtifact is the verified output of a codec.
type ConvertedArtifact struct {
	Path        string
	FileName    string
	Format      string
	ContentType string
	Size        int64
}

// Job is one conversion request.
type Job struct {
	ID       string
	Identity identity.Identity
	Source   UploadedArtifact
	Target   string
}

// Sink delivers a converted artifact to the caller. The orchestrator deletes
// the artifact once Deliver returns, whatever the result.
type Sink interface {
	Deliver(ctx context.Context, artifact ConvertedArtifact, content io.Reader) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, artifact ConvertedArtifact, content io.Reader) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, artifact ConvertedArtifact, content io.Reader) error {
	return f(ctx, artifact, content)
}

// artifacts tracks every temporary path a job creates so they can be removed
// together exactly once.
type artifacts struct {
	mu       sync.Mutex
	files    []string
	dirs     []string
	released bool
}

func (a *artifacts) trackFile(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path != "" {
		a.files = append(a.files, path)
	}
}

func (a *artifacts) trackDir(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path != "" {
		a.dirs = append(a.dirs, path)
	}
}

// release deletes all tracked paths. Missing paths are not errors and later
// calls are no-ops.
func (a *artifacts) release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true

	var errs []error
	for _, path := range a.files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, dir := range a.dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		metrics.ArtifactCleanupErrors.Add(float64(len(errs)))
		err := errors.Join(errs...)
		logging.Error("Failed to remove temporary artifacts: %v", err)
		return err
	}
	return nil
}
