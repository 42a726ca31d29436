package metrics

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestScanDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]int{
		"/work/uploads/a.png":         10,
		"/work/uploads/b.mp4":         25,
		"/work/uploads/pages/p-1.png": 5,
	}
	for name, size := range files {
		if err := afero.WriteFile(fs, name, make([]byte, size), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}

	stats, err := ScanDir(fs, "/work/uploads")
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}
	if stats.Files != 3 {
		t.Errorf("Files = %d, want 3", stats.Files)
	}
	if stats.Bytes != 40 {
		t.Errorf("Bytes = %d, want 40", stats.Bytes)
	}
}

func TestScanDirMissing(t *testing.T) {
	stats, err := ScanDir(afero.NewMemMapFs(), "/does/not/exist")
	if err != nil {
		t.Fatalf("ScanDir() on missing dir error = %v", err)
	}
	if stats.Files != 0 || stats.Bytes != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestCollectorStartStop(_ *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewCollector(fs, "/db/converter.db", map[string]string{"uploads": "/work/uploads"}, 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestCollectWithDatabaseFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/db/converter.db", make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/db/converter.db-wal", make([]byte, 128), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCollector(fs, "/db/converter.db", nil, time.Hour)
	c.collect()
}

func TestInitializeMetricsIdempotent(_ *testing.T) {
	InitializeMetrics()
	InitializeMetrics()
}

func TestSetAppInfo(_ *testing.T) {
	SetAppInfo("1.0.0", "abc123", "go1.25")
}
