package codec

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"

	"media-converter/internal/metrics"
)

// DefaultQuality is the encoder quality used for lossy targets.
const DefaultQuality = 85

// ErrToolUnavailable reports that the backing tool is missing or cannot
// handle the input format.
var ErrToolUnavailable = errors.New("conversion tool unavailable or format unsupported")

// ImageCodec converts still images.
type ImageCodec interface {
	// ConvertImage writes inputPath to outputPath in target format. quality
	// is in [1,100] and ignored for lossless targets.
	ConvertImage(ctx context.Context, inputPath, outputPath, target string, quality int) error
}

// VideoCodec converts and inspects motion media.
type VideoCodec interface {
	ConvertVideo(ctx context.Context, inputPath, outputPath, target string, quality int) error
	Probe(ctx context.Context, inputPath string) (ProbeResult, error)
}

// DocumentCodec rasterises and reassembles documents.
type DocumentCodec interface {
	// Rasterize renders every page of inputPath into outputDir and returns
	// the page image paths in page order.
	Rasterize(ctx context.Context, inputPath, outputDir string) ([]string, error)
	// Assemble writes one page per image to outputPath.
	Assemble(ctx context.Context, imagePaths []string, outputPath string) error
}

// ProbeResult describes a motion source.
type ProbeResult struct {
	Duration time.Duration
	Valid    bool
	Width    int
	Height   int
	Codec    string
}

// clampQuality keeps quality within [1,100], using DefaultQuality for zero.
func clampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}

// missingTool reports whether err came from starting an executable that
// does not exist.
func missingTool(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// unavailable wraps err with ErrToolUnavailable when it stems from a
// missing executable.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if missingTool(err) {
		return errors.Join(ErrToolUnavailable, err)
	}
	return err
}

// observe records a codec invocation.
func observe(codec, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CodecInvocationsTotal.WithLabelValues(codec, operation, status).Inc()
	metrics.CodecDuration.WithLabelValues(codec, operation).Observe(time.Since(start).Seconds())
}
