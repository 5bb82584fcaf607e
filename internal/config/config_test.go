package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKCAST_PORT", "")
	t.Setenv("TICKCAST_DELAY_MODE", "")
	t.Setenv("TICKCAST_SCHED_THREADS", "")
	t.Setenv("TICKCAST_JOURNAL_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.DelayMode != DelayCooperative {
		t.Fatalf("expected cooperative delay mode, got %q", cfg.DelayMode)
	}
	if cfg.SchedulerThreads != 0 {
		t.Fatalf("expected scheduler threads unset, got %d", cfg.SchedulerThreads)
	}
	if cfg.JournalDir != "" {
		t.Fatalf("expected journal disabled, got %q", cfg.JournalDir)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Addr() != ":3000" {
		t.Fatalf("unexpected derived address %q", cfg.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKCAST_PORT", "8080")
	t.Setenv("TICKCAST_DELAY_MODE", "Blocking")
	t.Setenv("TICKCAST_SCHED_THREADS", "1")
	t.Setenv("TICKCAST_JOURNAL_DIR", "/tmp/tickcast-journal")
	t.Setenv("TICKCAST_LOG_MAX_BACKUPS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DelayMode != DelayBlocking {
		t.Fatalf("expected blocking delay mode, got %q", cfg.DelayMode)
	}
	if cfg.SchedulerThreads != 1 {
		t.Fatalf("expected one scheduler thread, got %d", cfg.SchedulerThreads)
	}
	if cfg.JournalDir != "/tmp/tickcast-journal" {
		t.Fatalf("unexpected journal dir %q", cfg.JournalDir)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Fatalf("expected 3 log backups, got %d", cfg.Logging.MaxBackups)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	t.Setenv("TICKCAST_PORT", "99999")
	t.Setenv("TICKCAST_DELAY_MODE", "spin")
	t.Setenv("TICKCAST_SCHED_THREADS", "-1")
	t.Setenv("TICKCAST_LOG_MAX_SIZE_MB", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"TICKCAST_PORT",
		"TICKCAST_DELAY_MODE",
		"TICKCAST_SCHED_THREADS",
		"TICKCAST_LOG_MAX_SIZE_MB",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestSimulationConstantsAreFixed(t *testing.T) {
	if TickInterval.Milliseconds() != 1000 {
		t.Fatalf("tick interval must stay at 1000ms, got %v", TickInterval)
	}
	if LookupDelay.Milliseconds() != 5 {
		t.Fatalf("lookup delay must stay at 5ms, got %v", LookupDelay)
	}
	if ProcessingDelay.Milliseconds() != 20 {
		t.Fatalf("processing delay must stay at 20ms, got %v", ProcessingDelay)
	}
}
