package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// SearchTool resolves a free-text query to a media URL. Implementations invoke
// an external tool: calls may be slow, may fail transiently, and are paced by
// the stage's rate limiter.
type SearchTool interface {
	Search(ctx context.Context, query string) (string, error)
}

// searchStage is the rate-limited pool of workers that resolve URLs for jobs
// lacking one. Resolved jobs are forwarded to the download stage; jobs whose
// retries are exhausted go straight to the aggregator.
type searchStage struct {
	tool    SearchTool
	cfg     Config
	limiter *rate.Limiter
	logger  *log.Logger
	out     chan<- *Job
	agg     *Aggregator
	forward func() // invoked once per job forwarded toward the download stage

	// sleep is swapped in tests; the default is a cancellable jittered delay.
	sleep func(ctx context.Context, d time.Duration) error
}

func newSearchStage(cfg Config, tool SearchTool, out chan<- *Job, agg *Aggregator, logger *log.Logger, forward func()) *searchStage {
	return &searchStage{
		tool:    tool,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SearchRate), 1),
		logger:  logger,
		out:     out,
		agg:     agg,
		forward: forward,
		sleep:   sleepContext,
	}
}

// start launches the worker pool. The returned WaitGroup is done once every
// worker has observed the closed inbound channel and exited.
func (s *searchStage) start(ctx context.Context, in <-chan *Job) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.SearchWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.run(ctx, in, worker)
		}(i)
	}
	return &wg
}

// run is one worker's loop. After cancellation it keeps draining the channel
// without touching the tool, so producers blocked on enqueue are released.
func (s *searchStage) run(ctx context.Context, in <-chan *Job, worker int) {
	logger := s.logger.With("stage", "search", "worker", worker)

	for job := range in {
		if ctx.Err() != nil {
			logger.Debug("skipping job after cancellation", "job_id", job.ID(), "track", job.Query().Title)
			continue
		}
		s.process(ctx, job, logger)
	}
}

func (s *searchStage) process(ctx context.Context, job *Job, logger *log.Logger) {
	job.markSearching()

	var url string
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxSearchRetries; attempt++ {
		job.recordSearchAttempt()

		if err := s.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		result, err := s.tool.Search(ctx, job.Query().SearchText)
		if err == nil && result != "" {
			url = result
			break
		}
		lastErr = err

		logger.Debug("search attempt failed",
			"job_id", job.ID(),
			"track", job.Query().Title,
			"attempt", attempt,
			"err", err,
		)

		if attempt < s.cfg.MaxSearchRetries {
			delay := jitter(s.cfg.SearchDelayMin, s.cfg.SearchDelayMax)
			if err := s.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
	}

	switch {
	case url != "":
		job.markFound(url)
		s.forward()
		select {
		case s.out <- job:
		case <-ctx.Done():
			// Cancelled while forwarding: the job stays in its last known
			// state and is reported as interrupted, not dropped silently.
			logger.Warn("job interrupted before download", "job_id", job.ID(), "track", job.Query().Title)
		}
	case ctx.Err() != nil:
		logger.Warn("job interrupted during search", "job_id", job.ID(), "track", job.Query().Title)
	default:
		job.markFailed(StageSearch, lastErr)
		logger.Error("search exhausted retries",
			"job_id", job.ID(),
			"track", job.Query().Title,
			"attempts", job.SearchAttempts(),
			"err", lastErr,
		)
		s.agg.Record(job)
	}
}

// jitter draws a delay uniformly from [min, max], throttling the external
// service and desynchronizing concurrent workers.
func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// sleepContext is a cancellable sleep: a pending retry delay never outlives
// the run.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
