package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{LimitBytes: limit, PauseAt: 0.8, ResumeAt: 0.5})
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.PauseAt <= c.ResumeAt {
		t.Errorf("PauseAt %.2f must exceed ResumeAt %.2f", c.PauseAt, c.ResumeAt)
	}
	if c.CheckInterval <= 0 {
		t.Error("CheckInterval must be positive")
	}
}

func TestMonitorHysteresis(t *testing.T) {
	alloc := uint64(100)
	m := newTestMonitor(1000, &alloc)

	m.check()
	if m.IsPaused() {
		t.Fatal("paused at 10% usage")
	}

	alloc = 850
	m.check()
	if !m.IsPaused() {
		t.Fatal("not paused at 85% usage")
	}
	if got := m.Usage(); got != 0.85 {
		t.Errorf("Usage() = %v, want 0.85", got)
	}

	// Between the marks the state holds.
	alloc = 600
	m.check()
	if !m.IsPaused() {
		t.Error("resumed above ResumeAt")
	}

	alloc = 400
	m.check()
	if m.IsPaused() {
		t.Error("still paused below ResumeAt")
	}
}

func TestWaitIfPausedReleasesOnRecovery(t *testing.T) {
	alloc := uint64(900)
	m := newTestMonitor(1000, &alloc)
	m.check()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	alloc = 100
	m.check()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused() = false after recovery, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after recovery")
	}
}

func TestWaitIfPausedReleasesOnStop(t *testing.T) {
	alloc := uint64(900)
	m := newTestMonitor(1000, &alloc)
	m.check()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	m.Stop()
	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused() = true after Stop, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Stop")
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	debug.SetMemoryLimit(1<<63 - 1)
	defer debug.SetMemoryLimit(old)

	m := NewMonitor(DefaultConfig())
	m.Start()
	defer m.Stop()

	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused() = false without a limit")
	}
	if m.Usage() != 0 {
		t.Errorf("Usage() = %v, want 0", m.Usage())
	}
}

func TestParseRatio(t *testing.T) {
	tests := map[string]float64{
		"":      DefaultMemoryRatio,
		"0.5":   0.5,
		"1":     1,
		"0":     DefaultMemoryRatio,
		"1.5":   DefaultMemoryRatio,
		"half":  DefaultMemoryRatio,
		"-0.25": DefaultMemoryRatio,
	}
	for raw, want := range tests {
		if got := parseRatio(raw); got != want {
			t.Errorf("parseRatio(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestConfigureFromEnv(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(old)

	t.Run("nothing set", func(t *testing.T) {
		t.Setenv("GOMEMLIMIT", "")
		t.Setenv("MEMORY_LIMIT", "")
		if r := ConfigureFromEnv(); r.Configured || r.Source != "none" {
			t.Errorf("result = %+v", r)
		}
	})

	t.Run("container limit", func(t *testing.T) {
		t.Setenv("GOMEMLIMIT", "")
		t.Setenv("MEMORY_LIMIT", "1073741824")
		t.Setenv("MEMORY_RATIO", "0.5")

		r := ConfigureFromEnv()
		if !r.Configured || r.Source != "MEMORY_LIMIT" {
			t.Fatalf("result = %+v", r)
		}
		if r.GoMemLimit != 536870912 {
			t.Errorf("GoMemLimit = %d, want 512 MiB", r.GoMemLimit)
		}
		if got := debug.SetMemoryLimit(-1); got != 536870912 {
			t.Errorf("runtime limit = %d", got)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Setenv("GOMEMLIMIT", "")
		t.Setenv("MEMORY_LIMIT", "lots")
		if r := ConfigureFromEnv(); r.Configured {
			t.Errorf("result = %+v, want not configured", r)
		}
	})
}
