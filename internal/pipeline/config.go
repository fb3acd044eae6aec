package pipeline

import (
	"fmt"
	"time"

	"github.com/desertthunder/pldl/internal/shared"
)

// Config carries every tuning knob the pipeline recognizes. It is constructed
// once and passed into the coordinator; the pipeline reads no ambient state.
type Config struct {
	SearchWorkers       int           // concurrent search tool invocations
	DownloadWorkers     int           // concurrent fetch tool invocations
	MaxSearchRetries    int           // attempts per job in the search stage
	MaxDownloadRetries  int           // attempts per job in the download stage
	SearchDelayMin      time.Duration // lower bound of the jittered inter-attempt delay
	SearchDelayMax      time.Duration // upper bound of the jittered inter-attempt delay
	SearchRate          float64       // outbound search calls per second across the pool
	DownloadBackoffBase time.Duration // first retry delay; doubles each attempt
	QueueCapacity       int           // depth of each stage's inbound channel

	// PreDownloadThreshold delays the download stage until this many jobs have
	// queued for it. Purely a tuning knob; zero disables it.
	PreDownloadThreshold int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		SearchWorkers:       3,
		DownloadWorkers:     3,
		MaxSearchRetries:    3,
		MaxDownloadRetries:  3,
		SearchDelayMin:      500 * time.Millisecond,
		SearchDelayMax:      1500 * time.Millisecond,
		SearchRate:          5,
		DownloadBackoffBase: time.Second,
		QueueCapacity:       64,
	}
}

// Validate rejects misconfigurations before any worker starts.
func (c Config) Validate() error {
	if c.SearchWorkers < 1 {
		return fmt.Errorf("%w: search workers must be >= 1, got %d", shared.ErrInvalidConfig, c.SearchWorkers)
	}
	if c.DownloadWorkers < 1 {
		return fmt.Errorf("%w: download workers must be >= 1, got %d", shared.ErrInvalidConfig, c.DownloadWorkers)
	}
	if c.MaxSearchRetries < 1 {
		return fmt.Errorf("%w: max search retries must be >= 1, got %d", shared.ErrInvalidConfig, c.MaxSearchRetries)
	}
	if c.MaxDownloadRetries < 1 {
		return fmt.Errorf("%w: max download retries must be >= 1, got %d", shared.ErrInvalidConfig, c.MaxDownloadRetries)
	}
	if c.SearchDelayMin < 0 {
		return fmt.Errorf("%w: search delay min must be >= 0", shared.ErrInvalidConfig)
	}
	if c.SearchDelayMax < c.SearchDelayMin {
		return fmt.Errorf("%w: search delay max must be >= min", shared.ErrInvalidConfig)
	}
	if c.SearchRate <= 0 {
		return fmt.Errorf("%w: search rate must be > 0, got %f", shared.ErrInvalidConfig, c.SearchRate)
	}
	if c.DownloadBackoffBase < 0 {
		return fmt.Errorf("%w: download backoff base must be >= 0", shared.ErrInvalidConfig)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity must be >= 1, got %d", shared.ErrInvalidConfig, c.QueueCapacity)
	}
	if c.PreDownloadThreshold < 0 {
		return fmt.Errorf("%w: pre-download threshold must be >= 0", shared.ErrInvalidConfig)
	}
	// A threshold beyond the queue capacity could never be reached once the
	// download channel fills, deadlocking the search stage against the gate.
	if c.PreDownloadThreshold > c.QueueCapacity {
		return fmt.Errorf("%w: pre-download threshold must be <= queue capacity", shared.ErrInvalidConfig)
	}
	return nil
}
