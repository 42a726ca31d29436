package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"media-converter/internal/codec"
	"media-converter/internal/database"
	"media-converter/internal/filesystem"
	"media-converter/internal/formats"
	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/quota"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DefaultMaxGIFDuration is the longest motion source accepted for GIF output.
const DefaultMaxGIFDuration = 30 * time.Second

// HistoryRecorder persists completed conversions.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, rec database.HistoryRecord) (int64, error)
}

// Gate blocks new codec runs while the process is under memory pressure. It
// returns false when the process is shutting down.
type Gate interface {
	WaitIfPaused() bool
}

// Codecs bundles the adapters a job can be dispatched to.
type Codecs struct {
	Image    codec.ImageCodec
	Video    codec.VideoCodec
	Document codec.DocumentCodec
}

// Config controls orchestrator behaviour.
type Config struct {
	// OutputDir receives codec output. It must exist.
	OutputDir string
	// Limits are the per-request size ceilings, shared with the ledger.
	Limits quota.Limits
	// Quality is passed to lossy encoders; zero means codec.DefaultQuality.
	Quality int
	// MaxGIFDuration rejects longer motion sources bound for GIF.
	MaxGIFDuration time.Duration
	// Concurrency bounds simultaneous codec runs; zero means unbounded.
	Concurrency int
}

// Result describes a delivered job.
type Result struct {
	JobID    string
	Class    formats.MediaClass
	Artifact ConvertedArtifact
	Duration time.Duration
}

// Orchestrator runs conversion jobs from admission to cleanup.
type Orchestrator struct {
	cfg     Config
	codecs  Codecs
	ledger  *quota.Ledger
	history HistoryRecorder
	gate    Gate
	slots   chan struct{}
	retry   filesystem.RetryConfig
	now     func() time.Time
}

// New creates an Orchestrator. history and gate may be nil.
func New(cfg Config, codecs Codecs, ledger *quota.Ledger, history HistoryRecorder, gate Gate) *Orchestrator {
	if cfg.Quality == 0 {
		cfg.Quality = codec.DefaultQuality
	}
	if cfg.MaxGIFDuration <= 0 {
		cfg.MaxGIFDuration = DefaultMaxGIFDuration
	}

	o := &Orchestrator{
		cfg:     cfg,
		codecs:  codecs,
		ledger:  ledger,
		history: history,
		gate:    gate,
		retry:   filesystem.DefaultRetryConfig(),
		now:     time.Now,
	}
	if cfg.Concurrency > 0 {
		o.slots = make(chan struct{}, cfg.Concurrency)
	}
	return o
}

// Convert runs job and delivers the result to sink. The source artifact and
// every file the job creates are deleted before Convert returns, on every
// path. A non-nil error is always a *Error.
func (o *Orchestrator) Convert(ctx context.Context, job Job, sink Sink) (result Result, err error) {
	start := o.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	tracked := &artifacts{}
	tracked.trackFile(job.Source.Path)

	class := formats.ClassUnknown
	metrics.ConversionsInProgress.Inc()
	defer func() {
		_ = tracked.release()
		metrics.ConversionsInProgress.Dec()
		o.observe(job, class, start, err)
	}()

	if err := o.admit(ctx, job); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(job.Target) == "" {
		return Result{}, newError(KindMissingTarget, nil, "Target format is required")
	}

	class, target, err := o.classify(job)
	if err != nil {
		return Result{}, err
	}

	outputPath := filepath.Join(o.cfg.OutputDir, job.ID+"."+target)
	tracked.trackFile(outputPath)

	if err := o.dispatch(ctx, job, class, target, outputPath, tracked); err != nil {
		return Result{}, err
	}

	artifact, err := o.verify(job, target, outputPath)
	if err != nil {
		return Result{}, err
	}

	o.recordHistory(ctx, job, target)

	if err := o.deliver(ctx, sink, artifact); err != nil {
		return Result{}, err
	}

	return Result{
		JobID:    job.ID,
		Class:    class,
		Artifact: artifact,
		Duration: o.now().Sub(start),
	}, nil
}

// admit applies the per-request ceiling and then charges the ledger.
func (o *Orchestrator) admit(ctx context.Context, job Job) error {
	tier := job.Identity.Tier
	size := job.Source.Size

	if size <= 0 {
		return newError(KindUnsupportedType, nil, "Invalid file size")
	}

	if ceiling := o.cfg.Limits.Ceiling(tier); ceiling != quota.Unlimited && size > ceiling {
		return newError(KindPayloadTooLarge, nil,
			"Upload failed: %s users can only upload up to %s.", tierLabel(tier), megabytes(ceiling))
	}

	if o.ledger == nil {
		return nil
	}

	decision, err := o.ledger.Admit(ctx, job.Identity.Key, tier, size)
	if err != nil {
		return newError(KindInternal, err, "Conversion failed due to an internal error.")
	}
	if !decision.Admitted {
		return newError(KindQuotaExceeded, nil,
			"Daily limit exceeded: %s users can only process up to %s per %s.",
			tierLabel(tier), megabytes(decision.Limit), windowLabel(o.ledger.Window()))
	}
	return nil
}

func (o *Orchestrator) classify(job Job) (formats.MediaClass, string, error) {
	trusted := job.Identity.Tier == identity.TierAdmin

	class, err := formats.Classify(job.Source.OriginalName, job.Source.MimeType, trusted)
	if err != nil {
		return formats.ClassUnknown, "", newError(KindUnsupportedType, err, "Unsupported file type")
	}

	target, err := formats.ValidateTarget(class, job.Target)
	if err != nil {
		return class, "", newError(KindUnsupportedTarget, err,
			"Cannot convert %s files to %q. Supported targets: %s",
			class, job.Target, strings.Join(formats.Targets(class), ", "))
	}

	return class, target, nil
}

// dispatch runs exactly one codec path for class. Codec calls are detached
// from ctx cancellation so a dropped client does not abort a running tool;
// cleanup discards the output instead.
func (o *Orchestrator) dispatch(ctx context.Context, job Job, class formats.MediaClass, target, outputPath string, tracked *artifacts) error {
	release, err := o.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	codecCtx := context.WithoutCancel(ctx)
	src := job.Source.Path

	switch class {
	case formats.ClassImage:
		err = o.codecs.Image.ConvertImage(codecCtx, src, outputPath, target, o.cfg.Quality)

	case formats.ClassMotion:
		if err := o.inspectMotion(codecCtx, job, target); err != nil {
			return err
		}
		err = o.codecs.Video.ConvertVideo(codecCtx, src, outputPath, target, o.cfg.Quality)

	case formats.ClassDocument:
		pagesDir := filepath.Join(o.cfg.OutputDir, job.ID+"-pages")
		tracked.trackDir(pagesDir)

		var pages []string
		pages, err = o.codecs.Document.Rasterize(codecCtx, src, pagesDir)
		if err == nil {
			err = o.codecs.Document.Assemble(codecCtx, pages, outputPath)
		}

	default:
		return newError(KindInternal, fmt.Errorf("no codec for class %s", class), "Conversion failed due to an internal error.")
	}

	if err != nil {
		return codecFailure(class, err)
	}
	return nil
}

// acquire waits for a codec slot and for the memory gate.
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	if o.gate != nil && !o.gate.WaitIfPaused() {
		return nil, newError(KindInternal, errors.New("memory gate closed"), "Conversion failed due to an internal error.")
	}

	if o.slots == nil {
		return func() {}, nil
	}

	select {
	case o.slots <- struct{}{}:
		return func() { <-o.slots }, nil
	case <-ctx.Done():
		return nil, newError(KindInternal, ctx.Err(), "Conversion cancelled before it started.")
	}
}

// inspectMotion probes a motion source. Probe failures are logged and do not
// block the conversion; only a measured duration over the GIF ceiling does.
func (o *Orchestrator) inspectMotion(ctx context.Context, job Job, target string) error {
	probe, err := o.codecs.Video.Probe(ctx, job.Source.Path)
	if err != nil {
		logging.Warn("Video probe failed for %s, converting anyway: %v", job.Source.OriginalName, err)
		return nil
	}
	if !probe.Valid {
		logging.Warn("Video probe found no video stream in %s, converting anyway", job.Source.OriginalName)
	}

	if formats.IsStill(target) && probe.Duration > o.cfg.MaxGIFDuration {
		return newError(KindDurationExceeded, nil,
			"Video is too long for GIF conversion (%.0f seconds). Maximum is %.0f seconds.",
			probe.Duration.Seconds(), o.cfg.MaxGIFDuration.Seconds())
	}
	return nil
}

// codecFailure maps a codec error to ConversionFailed with a caller-safe
// message.
func codecFailure(class formats.MediaClass, err error) *Error {
	if errors.Is(err, codec.ErrToolUnavailable) {
		switch class {
		case formats.ClassMotion:
			return newError(KindConversionFailed, err,
				"Video conversion failed. The file format may not be supported or FFmpeg may not be installed.")
		case formats.ClassDocument:
			return newError(KindConversionFailed, err,
				"PDF conversion failed. The document may be damaged or the PDF tools may not be installed.")
		default:
			return newError(KindConversionFailed, err,
				"Image conversion failed. The file format may not be supported.")
		}
	}
	return newError(KindConversionFailed, err, "Conversion failed due to an internal error.")
}

// verify checks that the codec produced a non-empty output file.
func (o *Orchestrator) verify(job Job, target, outputPath string) (ConvertedArtifact, error) {
	info, err := filesystem.StatWithRetry(outputPath, o.retry)
	if err != nil {
		return ConvertedArtifact{}, newError(KindConversionFailed, err,
			"Conversion failed - output file was not created")
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return ConvertedArtifact{}, newError(KindConversionFailed,
			fmt.Errorf("output %s is empty", outputPath), "Conversion failed - output file is empty")
	}

	return ConvertedArtifact{
		Path:        outputPath,
		FileName:    DownloadName(job.Source.OriginalName, target),
		Format:      target,
		ContentType: formats.ContentType(target),
		Size:        info.Size(),
	}, nil
}

// recordHistory appends a history record for authenticated callers. Errors
// are logged and do not affect delivery.
func (o *Orchestrator) recordHistory(ctx context.Context, job Job, target string) {
	if o.history == nil || !job.Identity.Authenticated() {
		return
	}

	rec := database.HistoryRecord{
		UserID:       job.Identity.UserID,
		FileName:     job.Source.OriginalName,
		SourceFormat: formats.Extension(job.Source.OriginalName),
		TargetFormat: target,
		Size:         job.Source.Size,
		CreatedAt:    o.now(),
	}

	if _, err := o.history.AppendHistory(context.WithoutCancel(ctx), rec); err != nil {
		metrics.HistoryWriteErrors.Inc()
		logging.Error("Failed to record conversion history for %s: %v", job.Identity.Key, err)
	}
}

func (o *Orchestrator) deliver(ctx context.Context, sink Sink, artifact ConvertedArtifact) error {
	f, err := filesystem.OpenWithRetry(artifact.Path, o.retry)
	if err != nil {
		return newError(KindInternal, err, "Conversion failed due to an internal error.")
	}
	defer f.Close()

	if err := sink.Deliver(ctx, artifact, f); err != nil {
		return newError(KindInternal, err, "Delivery of the converted file was interrupted.")
	}

	metrics.ConversionOutputBytes.WithLabelValues(artifact.Format).Add(float64(artifact.Size))
	return nil
}

func (o *Orchestrator) observe(job Job, class formats.MediaClass, start time.Time, err error) {
	outcome := OutcomeOf(err)
	elapsed := o.now().Sub(start)

	metrics.ConversionsTotal.WithLabelValues(class.String(), string(outcome)).Inc()
	metrics.ConversionDuration.WithLabelValues(class.String()).Observe(elapsed.Seconds())

	switch outcome {
	case Delivered:
		logging.Info("Job %s delivered: %s (%s) to %s for %s in %v",
			job.ID, job.Source.OriginalName, humanize.IBytes(uint64(job.Source.Size)), job.Target, job.Identity.Key, elapsed)
	case Rejected:
		logging.Info("Job %s rejected for %s: %v", job.ID, job.Identity.Key, err)
	default:
		logging.Error("Job %s failed for %s: %v", job.ID, job.Identity.Key, err)
	}
}

// DownloadName is the suggested filename for a converted artifact.
func DownloadName(originalName, target string) string {
	base := formats.BaseName(originalName)
	if base == "" || base == "." {
		base = "file"
	}
	return base + "-converted." + target
}

func tierLabel(tier identity.Tier) string {
	switch tier {
	case identity.TierAdmin:
		return "Admin"
	case identity.TierUser:
		return "User"
	default:
		return "Guest"
	}
}

func megabytes(n int64) string {
	return fmt.Sprintf("%d MB", n/(1024*1024))
}

func windowLabel(window time.Duration) string {
	if window == 24*time.Hour {
		return "day"
	}
	return window.String()
}
