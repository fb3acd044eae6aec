package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// FetchTool downloads and transcodes the media at url into the output path
// template. Failures are typically transient network or availability issues on
// the external service, so the stage retries with exponential backoff.
type FetchTool interface {
	Fetch(ctx context.Context, url, outputTemplate string) error
}

// downloadStage is the bounded pool of workers that materialize audio files
// for jobs carrying a resolved URL.
type downloadStage struct {
	tool   FetchTool
	cfg    Config
	logger *log.Logger
	agg    *Aggregator
	gate   <-chan struct{} // closed when the stage may begin consuming
}

func newDownloadStage(cfg Config, tool FetchTool, agg *Aggregator, logger *log.Logger, gate <-chan struct{}) *downloadStage {
	return &downloadStage{
		tool:   tool,
		cfg:    cfg,
		logger: logger,
		agg:    agg,
		gate:   gate,
	}
}

// start launches the worker pool. The returned WaitGroup is done once every
// worker has observed the closed inbound channel and exited.
func (d *downloadStage) start(ctx context.Context, in <-chan *Job) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.DownloadWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.run(ctx, in, worker)
		}(i)
	}
	return &wg
}

func (d *downloadStage) run(ctx context.Context, in <-chan *Job, worker int) {
	logger := d.logger.With("stage", "download", "worker", worker)

	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
		}
	}

	for job := range in {
		if ctx.Err() != nil {
			logger.Debug("skipping job after cancellation", "job_id", job.ID(), "track", job.Query().Title)
			continue
		}
		d.process(ctx, job, logger)
	}
}

func (d *downloadStage) process(ctx context.Context, job *Job, logger *log.Logger) {
	job.markDownloading()

	policy := d.retryPolicy(ctx)
	err := backoff.Retry(func() error {
		job.recordDownloadAttempt()
		return d.tool.Fetch(ctx, job.ResolvedURL(), job.OutputTemplate())
	}, policy)

	switch {
	case err == nil:
		job.markCompleted()
		logger.Info("downloaded",
			"job_id", job.ID(),
			"track", job.Query().Title,
			"attempts", job.DownloadAttempts(),
		)
		d.agg.Record(job)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Interrupted mid-download: last known status stands, reported as
		// interrupted rather than failed.
		logger.Warn("job interrupted during download", "job_id", job.ID(), "track", job.Query().Title)
	default:
		job.markFailed(StageDownload, err)
		logger.Error("download exhausted retries",
			"job_id", job.ID(),
			"track", job.Query().Title,
			"attempts", job.DownloadAttempts(),
			"err", err,
		)
		d.agg.Record(job)
	}
}

// retryPolicy yields delays of base, 2*base, 4*base, ... with no jitter, capped
// at MaxDownloadRetries total attempts and cut short by cancellation.
func (d *downloadStage) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.DownloadBackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = d.cfg.DownloadBackoffBase * 1024
	b.MaxElapsedTime = 0
	b.Reset()

	retries := backoff.WithMaxRetries(b, uint64(d.cfg.MaxDownloadRetries-1))
	return backoff.WithContext(retries, ctx)
}
