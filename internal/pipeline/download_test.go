package pipeline

import (
	"context"
	"testing"
	"time"
)

func newTestDownloadStage(cfg Config, tool FetchTool, total int, gate <-chan struct{}) (*downloadStage, *Aggregator) {
	agg := NewAggregator(total, nil)
	return newDownloadStage(cfg, tool, agg, testLogger(), gate), agg
}

func TestDownloadStageFirstTry(t *testing.T) {
	tool := newMockFetchTool()
	stage, agg := newTestDownloadStage(fastConfig(), tool, 1, nil)

	job := testJob("Song", "Artist", "https://example.com/v1")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status())
	}
	if job.DownloadAttempts() != 1 {
		t.Errorf("DownloadAttempts() = %d, want 1", job.DownloadAttempts())
	}
	if !tool.sawURL("https://example.com/v1") {
		t.Error("tool never saw the resolved URL")
	}
	if snap := agg.Snapshot(); snap.Completed != 1 {
		t.Errorf("aggregator completed = %d, want 1", snap.Completed)
	}
}

func TestDownloadStageBackoffPattern(t *testing.T) {
	tool := newMockFetchTool()
	tool.failures["https://example.com/v1"] = 2

	cfg := fastConfig()
	cfg.DownloadBackoffBase = 30 * time.Millisecond
	stage, _ := newTestDownloadStage(cfg, tool, 1, nil)

	job := testJob("Song", "Artist", "https://example.com/v1")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status())
	}
	if job.DownloadAttempts() != 3 {
		t.Errorf("DownloadAttempts() = %d, want 3", job.DownloadAttempts())
	}

	times := tool.timesFor("https://example.com/v1")
	if len(times) != 3 {
		t.Fatalf("tool called %d times, want 3", len(times))
	}

	// Delays double per attempt: base before the second call, 2*base before
	// the third. Lower bounds are exact; upper bounds allow scheduler slack.
	for i, want := range []time.Duration{cfg.DownloadBackoffBase, 2 * cfg.DownloadBackoffBase} {
		gap := times[i+1].Sub(times[i])
		if gap < want {
			t.Errorf("gap %d = %v, want >= %v", i, gap, want)
		}
		if gap > want+100*time.Millisecond {
			t.Errorf("gap %d = %v, far beyond %v", i, gap, want)
		}
	}
}

func TestDownloadStageExhaustsRetries(t *testing.T) {
	tool := newMockFetchTool()
	tool.failures["https://example.com/v1"] = -1

	cfg := fastConfig()
	stage, agg := newTestDownloadStage(cfg, tool, 1, nil)

	job := testJob("Song", "Artist", "https://example.com/v1")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusDownloadFailed {
		t.Fatalf("status = %s, want download_failed", job.Status())
	}
	if job.DownloadAttempts() != cfg.MaxDownloadRetries {
		t.Errorf("DownloadAttempts() = %d, want %d", job.DownloadAttempts(), cfg.MaxDownloadRetries)
	}
	if job.Err() == nil {
		t.Error("Err() = nil, want last fetch error")
	}
	if snap := agg.Snapshot(); snap.DownloadFailed != 1 {
		t.Errorf("aggregator download failed = %d, want 1", snap.DownloadFailed)
	}
}

func TestDownloadStageInterrupted(t *testing.T) {
	tool := newMockFetchTool()
	stage, agg := newTestDownloadStage(fastConfig(), tool, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := testJob("Song", "Artist", "https://example.com/v1")
	stage.process(ctx, job, stage.logger)

	if job.Status().Terminal() {
		t.Errorf("interrupted job reached terminal status %s", job.Status())
	}
	if snap := agg.Snapshot(); snap.Processed != 0 {
		t.Errorf("interrupted job recorded; processed = %d", snap.Processed)
	}
}

func TestDownloadWorkersDrainAfterCancel(t *testing.T) {
	tool := newMockFetchTool()
	cfg := fastConfig()
	cfg.DownloadWorkers = 2
	stage, _ := newTestDownloadStage(cfg, tool, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan *Job, 4)
	for i := 0; i < 4; i++ {
		in <- testJob("Song", "Artist", "https://example.com/v1")
	}
	close(in)

	wg := stage.start(ctx, in)
	wg.Wait()

	if tool.sawURL("https://example.com/v1") {
		t.Error("tool called after cancellation")
	}
	if len(in) != 0 {
		t.Errorf("%d jobs left undrained", len(in))
	}
}

func TestDownloadStageWaitsForGate(t *testing.T) {
	tool := newMockFetchTool()
	gate := make(chan struct{})
	stage, agg := newTestDownloadStage(fastConfig(), tool, 1, gate)

	in := make(chan *Job, 1)
	in <- testJob("Song", "Artist", "https://example.com/v1")
	close(in)

	wg := stage.start(context.Background(), in)

	time.Sleep(20 * time.Millisecond)
	if tool.sawURL("https://example.com/v1") {
		t.Fatal("worker consumed a job before the gate opened")
	}

	close(gate)
	wg.Wait()

	if snap := agg.Snapshot(); snap.Completed != 1 {
		t.Errorf("aggregator completed = %d, want 1", snap.Completed)
	}
}
