// package pipeline implements the two-stage search/download engine.
//
// A run turns a list of track queries into local audio files: a rate-limited
// search stage resolves each query to a media URL through the search tool, and
// a bounded download stage fetches and transcodes the audio through the fetch
// tool. Both stages are fixed-size worker pools joined by bounded channels, so
// a fast search stage cannot outrun a slower download stage. Jobs whose query
// already carries a URL bypass the search stage entirely.
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/desertthunder/pldl/internal/shared"
)

// Status tracks a job through the pipeline. Transitions are forward-only;
// retries within a stage are visible only through the attempt counters.
type Status int

const (
	StatusPending Status = iota
	StatusSearching
	StatusFound
	StatusDownloading
	StatusCompleted
	StatusSearchFailed
	StatusDownloadFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSearching:
		return "searching"
	case StatusFound:
		return "found"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusSearchFailed:
		return "search_failed"
	case StatusDownloadFailed:
		return "download_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSearchFailed, StatusDownloadFailed:
		return true
	default:
		return false
	}
}

// Stage identifies which pipeline phase produced a failure.
type Stage int

const (
	StageSearch Stage = iota
	StageDownload
)

func (s Stage) String() string {
	if s == StageDownload {
		return "download"
	}
	return "search"
}

// TrackQuery is the immutable description of one track to materialize.
type TrackQuery struct {
	Title      string // display title
	Artist     string // primary artist
	SearchText string // normalized text handed to the search tool
	Filename   string // target basename, stable and collision-free within a playlist
	KnownURL   string // pre-resolved media URL; non-empty jobs skip the search stage
}

// Job wraps one TrackQuery with its pipeline state. A job is owned by exactly
// one worker at a time; ownership moves through the stage channels, and a
// terminal job belongs to the result aggregator and is never mutated again.
type Job struct {
	id               string
	query            TrackQuery
	outputDir        string
	status           Status
	resolvedURL      string
	searchAttempts   int
	downloadAttempts int
	err              error
}

// NewJob creates a Job for the given query. Queries with a known URL start in
// StatusFound with the URL already resolved.
func NewJob(query TrackQuery, outputDir string) *Job {
	job := &Job{
		id:        shared.GenerateID(),
		query:     query,
		outputDir: outputDir,
		status:    StatusPending,
	}
	if query.KnownURL != "" {
		job.resolvedURL = query.KnownURL
		job.status = StatusFound
	}
	return job
}

func (j *Job) ID() string            { return j.id }
func (j *Job) Query() TrackQuery     { return j.query }
func (j *Job) Status() Status        { return j.status }
func (j *Job) ResolvedURL() string   { return j.resolvedURL }
func (j *Job) SearchAttempts() int   { return j.searchAttempts }
func (j *Job) DownloadAttempts() int { return j.downloadAttempts }
func (j *Job) Err() error            { return j.err }

// Bypass reports whether the job skips the search stage.
func (j *Job) Bypass() bool { return j.query.KnownURL != "" }

// OutputTemplate is the yt-dlp style output path with an extension placeholder.
func (j *Job) OutputTemplate() string {
	return filepath.Join(j.outputDir, j.query.Filename+".%(ext)s")
}

// InvalidTransitionError signals a stage transition whose precondition was
// violated. This is a pipeline bug, not a job failure: it is raised as a panic
// so it can never be confused with (or swallowed as) an ordinary retryable
// error.
type InvalidTransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job transition %s -> %s (job %s)", e.From, e.To, e.JobID)
}

func (j *Job) transition(from, to Status) {
	if j.status != from {
		panic(&InvalidTransitionError{JobID: j.id, From: j.status, To: to})
	}
	j.status = to
}

// markSearching moves a pending job into the search stage.
func (j *Job) markSearching() {
	j.transition(StatusPending, StatusSearching)
}

// markFound records the resolved URL, exactly once, and hands the job to the
// download stage.
func (j *Job) markFound(url string) {
	if url == "" || j.resolvedURL != "" {
		panic(&InvalidTransitionError{JobID: j.id, From: j.status, To: StatusFound})
	}
	j.transition(StatusSearching, StatusFound)
	j.resolvedURL = url
}

// markDownloading moves a resolved job into the download stage. A job may only
// start downloading once a URL is present.
func (j *Job) markDownloading() {
	if j.resolvedURL == "" {
		panic(&InvalidTransitionError{JobID: j.id, From: j.status, To: StatusDownloading})
	}
	j.transition(StatusFound, StatusDownloading)
}

// markCompleted finalizes a successful download.
func (j *Job) markCompleted() {
	j.transition(StatusDownloading, StatusCompleted)
}

// markFailed finalizes a job after a stage exhausted its retries, retaining the
// last error for reporting.
func (j *Job) markFailed(stage Stage, err error) {
	switch stage {
	case StageSearch:
		j.transition(StatusSearching, StatusSearchFailed)
	case StageDownload:
		j.transition(StatusDownloading, StatusDownloadFailed)
	}
	j.err = err
}

func (j *Job) recordSearchAttempt()   { j.searchAttempts++ }
func (j *Job) recordDownloadAttempt() { j.downloadAttempts++ }
