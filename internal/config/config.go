package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the TCP port the demo server listens on.
	DefaultPort = 3000

	// TickInterval is the fixed period of the shared counter ticker.
	TickInterval = 1000 * time.Millisecond
	// LookupDelay is the simulated backend lookup latency.
	LookupDelay = 5 * time.Millisecond
	// ProcessingDelay is the fixed response-assembly delay applied by the
	// polling handler on top of the lookup.
	ProcessingDelay = 20 * time.Millisecond

	// DefaultLogLevel controls verbosity for server logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "tickcast.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// DelayMode selects how the delay simulator waits out its artificial latency.
type DelayMode string

const (
	// DelayCooperative suspends only the calling goroutine, letting the
	// scheduler service other work during the wait.
	DelayCooperative DelayMode = "cooperative"
	// DelayBlocking busy-spins for the full duration, monopolising the
	// scheduler slot. Deliberately pathological under concurrency.
	DelayBlocking DelayMode = "blocking"
)

// Config captures all runtime tunables for the demo server.
type Config struct {
	Port             int
	DelayMode        DelayMode
	SchedulerThreads int
	JournalDir       string
	Logging          LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Addr returns the listen address derived from the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads the server configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       DefaultPort,
		DelayMode:  DelayCooperative,
		JournalDir: strings.TrimSpace(os.Getenv("TICKCAST_JOURNAL_DIR")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("TICKCAST_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("TICKCAST_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_PORT")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > 65535 {
			problems = append(problems, fmt.Sprintf("TICKCAST_PORT must be a valid TCP port, got %q", raw))
		} else {
			cfg.Port = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_DELAY_MODE")); raw != "" {
		switch DelayMode(strings.ToLower(raw)) {
		case DelayCooperative:
			cfg.DelayMode = DelayCooperative
		case DelayBlocking:
			cfg.DelayMode = DelayBlocking
		default:
			problems = append(problems, fmt.Sprintf("TICKCAST_DELAY_MODE must be %q or %q, got %q", DelayCooperative, DelayBlocking, raw))
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_SCHED_THREADS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("TICKCAST_SCHED_THREADS must be a non-negative integer, got %q", raw))
		} else {
			cfg.SchedulerThreads = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("TICKCAST_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("TICKCAST_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("TICKCAST_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TICKCAST_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("TICKCAST_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
