package metrics

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"media-converter/internal/logging"

	"github.com/spf13/afero"
)

// DirStats summarises one directory tree.
type DirStats struct {
	Files int
	Bytes int64
}

// Collector periodically samples gauges that are not updated inline:
// work directory occupancy, database file sizes and heap usage.
type Collector struct {
	fs       afero.Fs
	dbPath   string
	workDirs map[string]string
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector. workDirs maps a label ("uploads",
// "converted") to a directory path on fs.
func NewCollector(fs afero.Fs, dbPath string, workDirs map[string]string, interval time.Duration) *Collector {
	return &Collector{
		fs:       fs,
		dbPath:   dbPath,
		workDirs: workDirs,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	for label, dir := range c.workDirs {
		stats, err := ScanDir(c.fs, dir)
		if err != nil {
			logging.Debug("Metrics: failed to scan %s: %v", dir, err)
			continue
		}
		WorkDirFiles.WithLabelValues(label).Set(float64(stats.Files))
		WorkDirBytes.WithLabelValues(label).Set(float64(stats.Bytes))
	}

	c.collectDBSize()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	GoHeapAllocBytes.Set(float64(ms.HeapAlloc))
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := c.fs.Stat(c.dbPath + suffix)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Debug("Metrics: failed to stat %s: %v", c.dbPath+suffix, err)
			}
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}

// ScanDir counts regular files and their total size under dir.
// A missing directory yields zero stats.
func ScanDir(fs afero.Fs, dir string) (DirStats, error) {
	var stats DirStats
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && filepath.Clean(path) == filepath.Clean(dir) {
				return nil
			}
			return err
		}
		if info.Mode().IsRegular() {
			stats.Files++
			stats.Bytes += info.Size()
		}
		return nil
	})
	return stats, err
}
