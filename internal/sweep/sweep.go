package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
)

const (
	// DefaultSchedule runs the file sweep twice a day.
	DefaultSchedule = "0 */12 * * *"
	// DefaultPurgeSchedule runs the quota purge every hour.
	DefaultPurgeSchedule = "@hourly"
	// DefaultRetention is the age after which a file is considered leaked.
	DefaultRetention = 24 * time.Hour
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// QuotaPurger removes expired quota records.
type QuotaPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunRecorder persists the time of the last completed sweep.
type RunRecorder interface {
	SetLastSweepRun(ctx context.Context, t time.Time) error
}

// Config controls which directories are swept and when.
type Config struct {
	Dirs          []string
	Retention     time.Duration
	Schedule      string
	PurgeSchedule string
}

// Result summarises one sweep run.
type Result struct {
	FilesRemoved   int
	DirsRemoved    int
	BytesReclaimed int64
	Errors         int
	Duration       time.Duration
}

// Sweeper deletes files older than the retention period from the work
// directories and purges expired quota records on a cron schedule.
//
// File age is the only liveness signal: an in-flight job's files are always
// younger than the retention period.
type Sweeper struct {
	fs       afero.Fs
	cfg      Config
	purger   QuotaPurger
	recorder RunRecorder

	cron     *cron.Cron
	runMu    sync.Mutex
	stopOnce sync.Once
	now      func() time.Time
}

// New validates cfg and returns a Sweeper. purger and recorder may be nil.
func New(fs afero.Fs, cfg Config, purger QuotaPurger, recorder RunRecorder) (*Sweeper, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = DefaultPurgeSchedule
	}
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	if _, err := parser.Parse(cfg.PurgeSchedule); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", cfg.PurgeSchedule, err)
	}

	return &Sweeper{
		fs:       fs,
		cfg:      cfg,
		purger:   purger,
		recorder: recorder,
		cron:     cron.New(cron.WithParser(parser)),
		now:      time.Now,
	}, nil
}

// Start registers the scheduled jobs and starts the scheduler. It does not
// run a sweep immediately.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logging.Error("Scheduled sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.cfg.PurgeSchedule, func() {
			if _, err := s.PurgeQuota(context.Background()); err != nil {
				logging.Error("Scheduled quota purge failed: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule quota purge: %w", err)
		}
	}

	s.cron.Start()
	logging.Info("Sweep scheduled: files %q (retention %v), quota purge %q",
		s.cfg.Schedule, s.cfg.Retention, s.cfg.PurgeSchedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		logging.Info("Sweep scheduler stopped")
	})
}

// RunOnce sweeps every configured directory. Runs are serialised; a second
// caller waits for the first to finish.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	cutoff := start.Add(-s.cfg.Retention)
	var result Result
	var errs []error

	for _, dir := range s.cfg.Dirs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.sweepDir(dir, cutoff, &result); err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", dir, err))
		}
	}

	result.Duration = s.now().Sub(start)
	err := errors.Join(errs...)

	status := "success"
	if err != nil || result.Errors > 0 {
		status = "error"
	}
	metrics.SweepRunsTotal.WithLabelValues(status).Inc()
	metrics.SweepFilesRemoved.Add(float64(result.FilesRemoved))
	metrics.SweepBytesReclaimed.Add(float64(result.BytesReclaimed))
	metrics.SweepLastRunTimestamp.Set(float64(start.Unix()))
	metrics.SweepLastRunDuration.Set(result.Duration.Seconds())

	if result.FilesRemoved > 0 || result.Errors > 0 {
		logging.Info("Sweep removed %d files and %d directories (%s), %d errors, in %v",
			result.FilesRemoved, result.DirsRemoved, humanize.IBytes(uint64(result.BytesReclaimed)), result.Errors, result.Duration)
	} else {
		logging.Debug("Sweep found nothing older than %v", s.cfg.Retention)
	}

	if s.recorder != nil {
		if rerr := s.recorder.SetLastSweepRun(context.WithoutCancel(ctx), start); rerr != nil {
			logging.Warn("Failed to record sweep time: %v", rerr)
		}
	}

	return result, err
}

// sweepDir removes stale files under dir, then any stale directories left
// empty. dir itself is never removed.
func (s *Sweeper) sweepDir(dir string, cutoff time.Time, result *Result) error {
	if _, err := s.fs.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	var staleDirs []string
	err := afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			logging.Warn("Sweep cannot read %s: %v", path, err)
			result.Errors++
			return nil
		}
		if path == dir || !info.ModTime().Before(cutoff) {
			return nil
		}
		if info.IsDir() {
			staleDirs = append(staleDirs, path)
			return nil
		}

		if err := s.fs.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.Warn("Sweep failed to remove %s: %v", path, err)
				result.Errors++
			}
			return nil
		}
		result.FilesRemoved++
		result.BytesReclaimed += info.Size()
		logging.Debug("Sweep removed %s (%s, modified %s)", path, humanize.IBytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		return nil
	})
	if err != nil {
		return err
	}

	// Deepest first so parents empty out before they are checked.
	sort.Sort(sort.Reverse(sort.StringSlice(staleDirs)))
	for _, d := range staleDirs {
		empty, err := afero.IsEmpty(s.fs, d)
		if err != nil || !empty {
			continue
		}
		if err := s.fs.Remove(d); err == nil {
			result.DirsRemoved++
		}
	}
	return nil
}

// PurgeQuota deletes expired quota records.
func (s *Sweeper) PurgeQuota(ctx context.Context) (int64, error) {
	if s.purger == nil {
		return 0, nil
	}
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.QuotaRecordsPurged.Add(float64(n))
	if n > 0 {
		logging.Info("Purged %d expired quota records", n)
	}
	return n, nil
}
