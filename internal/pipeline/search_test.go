package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestSearchStage wires a searchStage to a buffered out channel and an
// aggregator sized for total jobs, recording sleeps instead of performing them.
func newTestSearchStage(cfg Config, tool SearchTool, total int) (*searchStage, chan *Job, *Aggregator, *[]time.Duration) {
	out := make(chan *Job, total)
	agg := NewAggregator(total, nil)
	stage := newSearchStage(cfg, tool, out, agg, testLogger(), func() {})

	var mu sync.Mutex
	slept := &[]time.Duration{}
	stage.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*slept = append(*slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	return stage, out, agg, slept
}

func TestSearchStageResolvesFirstTry(t *testing.T) {
	tool := newMockSearchTool(map[string]string{"Song Artist": "https://example.com/v1"})
	stage, out, agg, slept := newTestSearchStage(fastConfig(), tool, 1)

	job := testJob("Song", "Artist", "")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusFound {
		t.Fatalf("status = %s, want found", job.Status())
	}
	if job.ResolvedURL() != "https://example.com/v1" {
		t.Errorf("ResolvedURL() = %q", job.ResolvedURL())
	}
	if job.SearchAttempts() != 1 {
		t.Errorf("SearchAttempts() = %d, want 1", job.SearchAttempts())
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}

	select {
	case got := <-out:
		if got != job {
			t.Error("forwarded a different job")
		}
	default:
		t.Error("resolved job was not forwarded")
	}
	if snap := agg.Snapshot(); snap.Processed != 0 {
		t.Errorf("non-terminal job recorded; processed = %d", snap.Processed)
	}
}

func TestSearchStageRetriesThenSucceeds(t *testing.T) {
	tool := newMockSearchTool(map[string]string{"Song Artist": "https://example.com/v1"})
	tool.failures["Song Artist"] = 2

	cfg := fastConfig()
	stage, out, _, slept := newTestSearchStage(cfg, tool, 1)

	job := testJob("Song", "Artist", "")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusFound {
		t.Fatalf("status = %s, want found", job.Status())
	}
	if job.SearchAttempts() != 3 {
		t.Errorf("SearchAttempts() = %d, want 3", job.SearchAttempts())
	}
	if len(*slept) != 2 {
		t.Fatalf("slept %d times between attempts, want 2", len(*slept))
	}
	for i, d := range *slept {
		if d < cfg.SearchDelayMin || d > cfg.SearchDelayMax {
			t.Errorf("delay %d = %v outside [%v, %v]", i, d, cfg.SearchDelayMin, cfg.SearchDelayMax)
		}
	}
	if len(out) != 1 {
		t.Errorf("out queue length = %d, want 1", len(out))
	}
}

func TestSearchStageExhaustsRetries(t *testing.T) {
	tool := newMockSearchTool(nil)
	cfg := fastConfig()
	stage, out, agg, slept := newTestSearchStage(cfg, tool, 1)

	job := testJob("Missing", "Artist", "")
	stage.process(context.Background(), job, stage.logger)

	if job.Status() != StatusSearchFailed {
		t.Fatalf("status = %s, want search_failed", job.Status())
	}
	if job.SearchAttempts() != cfg.MaxSearchRetries {
		t.Errorf("SearchAttempts() = %d, want %d", job.SearchAttempts(), cfg.MaxSearchRetries)
	}
	if !errors.Is(job.Err(), errNoResults) {
		t.Errorf("Err() = %v, want errNoResults", job.Err())
	}
	// No delay follows the final attempt.
	if len(*slept) != cfg.MaxSearchRetries-1 {
		t.Errorf("slept %d times, want %d", len(*slept), cfg.MaxSearchRetries-1)
	}
	if len(out) != 0 {
		t.Error("failed job must not be forwarded")
	}
	if snap := agg.Snapshot(); snap.SearchFailed != 1 {
		t.Errorf("aggregator search failed = %d, want 1", snap.SearchFailed)
	}
}

func TestSearchStageInterrupted(t *testing.T) {
	tool := newMockSearchTool(nil)
	stage, _, agg, _ := newTestSearchStage(fastConfig(), tool, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := testJob("Song", "Artist", "")
	stage.process(ctx, job, stage.logger)

	if job.Status().Terminal() {
		t.Errorf("interrupted job reached terminal status %s", job.Status())
	}
	if snap := agg.Snapshot(); snap.Processed != 0 {
		t.Errorf("interrupted job recorded; processed = %d", snap.Processed)
	}
}

func TestSearchWorkersDrainAfterCancel(t *testing.T) {
	tool := newMockSearchTool(nil)
	cfg := fastConfig()
	cfg.SearchWorkers = 2

	out := make(chan *Job, 8)
	agg := NewAggregator(4, nil)
	stage := newSearchStage(cfg, tool, out, agg, testLogger(), func() {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan *Job, 4)
	for i := 0; i < 4; i++ {
		in <- testJob("Song", "Artist", "")
	}
	close(in)

	wg := stage.start(ctx, in)
	wg.Wait()

	if tool.callCount() != 0 {
		t.Errorf("tool called %d times after cancellation, want 0", tool.callCount())
	}
	if len(in) != 0 {
		t.Errorf("%d jobs left undrained", len(in))
	}
}

func TestJitterRange(t *testing.T) {
	min, max := 10*time.Millisecond, 30*time.Millisecond
	for i := 0; i < 100; i++ {
		d := jitter(min, max)
		if d < min || d > max {
			t.Fatalf("jitter(%v, %v) = %v out of range", min, max, d)
		}
	}

	if d := jitter(min, min); d != min {
		t.Errorf("jitter with equal bounds = %v, want %v", d, min)
	}
}

func TestSleepContext(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		if err := sleepContext(context.Background(), time.Millisecond); err != nil {
			t.Errorf("sleepContext() = %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := sleepContext(ctx, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("sleepContext() = %v, want context.Canceled", err)
		}
	})

	t.Run("zero duration", func(t *testing.T) {
		if err := sleepContext(context.Background(), 0); err != nil {
			t.Errorf("sleepContext(0) = %v", err)
		}
	})
}
