package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pldl/internal/services"
	"github.com/desertthunder/pldl/internal/shared"
)

// Coordinator wires the two stages together and owns queue and worker
// lifecycle for a run. It never touches job state itself.
type Coordinator struct {
	cfg    Config
	search SearchTool
	fetch  FetchTool
	logger *log.Logger
	notify ProgressFunc
}

// NewCoordinator validates cfg and builds a Coordinator. notify may be nil.
func NewCoordinator(cfg Config, search SearchTool, fetch FetchTool, logger *log.Logger, notify ProgressFunc) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if search == nil || fetch == nil {
		return nil, fmt.Errorf("%w: search and fetch tools are required", shared.ErrInvalidConfig)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Coordinator{
		cfg:    cfg,
		search: search,
		fetch:  fetch,
		logger: logger,
		notify: notify,
	}, nil
}

// BuildJobs turns a track list into pipeline jobs, dropping tracks whose
// target filename is already present in the existing set. Filenames follow
// "Artist - Title" sanitized for the filesystem; collisions within the list
// get a numeric suffix so no two jobs write the same file.
//
// Returns the jobs plus the number of tracks skipped as already downloaded.
func BuildJobs(tracks []services.Track, existing map[string]bool, outputDir string) ([]*Job, int) {
	jobs := make([]*Job, 0, len(tracks))
	taken := make(map[string]bool, len(tracks))
	skipped := 0

	for _, track := range tracks {
		base := shared.SanitizeFilename(fmt.Sprintf("%s - %s", track.Artist, track.Title))

		filename := base
		for n := 2; taken[filename]; n++ {
			filename = fmt.Sprintf("%s (%d)", base, n)
		}
		taken[filename] = true

		if existing[filename] {
			skipped++
			continue
		}

		jobs = append(jobs, NewJob(TrackQuery{
			Title:      track.Title,
			Artist:     track.Artist,
			SearchText: shared.SimplifySearchQuery(track.Title, track.Artist),
			Filename:   filename,
			KnownURL:   track.URL,
		}, outputDir))
	}

	return jobs, skipped
}

// Run executes the pipeline over jobs and blocks until every stage has
// drained, returning the classified results.
//
// Shutdown is two-phase: the search channel closes once all search-bound jobs
// are enqueued, but the download channel cannot close until the search pool
// has fully stopped producing into it. Cancelling ctx stops enqueuing, lets
// in-flight tool calls finish or be killed, and still drains both stages
// before the summary is built.
func (c *Coordinator) Run(ctx context.Context, jobs []*Job) *Summary {
	agg := NewAggregator(len(jobs), c.notify)

	searchCh := make(chan *Job, c.cfg.QueueCapacity)
	downloadCh := make(chan *Job, c.cfg.QueueCapacity)

	// The gate holds download workers until enough search results have queued.
	// It always releases once the search pool can no longer produce.
	var gate chan struct{}
	forward := func() {}
	releaseGate := func() {}
	if threshold := c.cfg.PreDownloadThreshold; threshold > 0 {
		gate = make(chan struct{})
		var once sync.Once
		releaseGate = func() { once.Do(func() { close(gate) }) }

		var mu sync.Mutex
		var queued int
		forward = func() {
			mu.Lock()
			queued++
			reached := queued >= threshold
			mu.Unlock()
			if reached {
				releaseGate()
			}
		}
	}

	// Workers start before any job is enqueued so nothing can be dropped.
	downloadWG := newDownloadStage(c.cfg, c.fetch, agg, c.logger, gate).start(ctx, downloadCh)
	searchWG := newSearchStage(c.cfg, c.search, downloadCh, agg, c.logger, forward).start(ctx, searchCh)

	c.enqueue(ctx, jobs, searchCh, downloadCh, forward)

	// Phase one: no more search input; wait for the pool to stop producing.
	close(searchCh)
	searchWG.Wait()
	releaseGate()

	// Phase two: the download stage's input is now complete.
	close(downloadCh)
	downloadWG.Wait()

	summary := agg.Summary()
	c.logger.Info("pipeline drained",
		"total", summary.Total,
		"completed", len(summary.Completed),
		"search_failed", len(summary.SearchFailed),
		"download_failed", len(summary.DownloadFailed),
		"interrupted", summary.Interrupted,
	)
	return summary
}

// enqueue partitions jobs between the stages: jobs that already carry a URL
// bypass search entirely. Cancellation stops the feed; running workers drain
// whatever was already queued.
func (c *Coordinator) enqueue(ctx context.Context, jobs []*Job, searchCh, downloadCh chan<- *Job, forward func()) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}

		if job.Bypass() {
			forward()
			select {
			case downloadCh <- job:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case searchCh <- job:
		case <-ctx.Done():
			return
		}
	}
}
