package pipeline

import (
	"fmt"
	"sync"
)

// ProgressFunc receives the running completed count after every terminal job.
type ProgressFunc func(completed, total int)

// Snapshot is a point-in-time view of the aggregator's counts.
type Snapshot struct {
	Total          int // jobs seeded into the run
	Processed      int // jobs that reached a terminal state
	Completed      int
	SearchFailed   int
	DownloadFailed int
}

// Summary holds the final classified results of a run.
type Summary struct {
	Total          int    // jobs seeded into the run
	Interrupted    int    // jobs that never reached a terminal state (cancellation)
	Completed      []*Job
	SearchFailed   []*Job
	DownloadFailed []*Job
}

// Aggregator collects every terminal job into exactly one bucket. Appends are
// safe from any worker; ordering across jobs is not significant.
type Aggregator struct {
	mu             sync.Mutex
	total          int
	completed      []*Job
	searchFailed   []*Job
	downloadFailed []*Job
	notify         ProgressFunc
}

// NewAggregator creates an Aggregator for a run of total jobs. notify may be
// nil when no progress reporting is wanted.
func NewAggregator(total int, notify ProgressFunc) *Aggregator {
	return &Aggregator{total: total, notify: notify}
}

// Record takes ownership of a terminal job, buckets it by status, and fires
// one progress notification. Recording a non-terminal job is a pipeline bug.
func (a *Aggregator) Record(job *Job) {
	a.mu.Lock()

	switch job.Status() {
	case StatusCompleted:
		a.completed = append(a.completed, job)
	case StatusSearchFailed:
		a.searchFailed = append(a.searchFailed, job)
	case StatusDownloadFailed:
		a.downloadFailed = append(a.downloadFailed, job)
	default:
		a.mu.Unlock()
		panic(fmt.Sprintf("pipeline: job %s recorded in non-terminal status %s", job.ID(), job.Status()))
	}

	completed := len(a.completed)
	notify := a.notify
	total := a.total
	a.mu.Unlock()

	// Outside the lock: the sink may be arbitrarily slow.
	if notify != nil {
		notify(completed, total)
	}
}

// Snapshot returns the current counts.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	processed := len(a.completed) + len(a.searchFailed) + len(a.downloadFailed)
	return Snapshot{
		Total:          a.total,
		Processed:      processed,
		Completed:      len(a.completed),
		SearchFailed:   len(a.searchFailed),
		DownloadFailed: len(a.downloadFailed),
	}
}

// Summary returns the final classified results. Bucket slices are copies; the
// jobs themselves are terminal and immutable.
func (a *Aggregator) Summary() *Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	processed := len(a.completed) + len(a.searchFailed) + len(a.downloadFailed)
	return &Summary{
		Total:          a.total,
		Interrupted:    a.total - processed,
		Completed:      append([]*Job(nil), a.completed...),
		SearchFailed:   append([]*Job(nil), a.searchFailed...),
		DownloadFailed: append([]*Job(nil), a.downloadFailed...),
	}
}
