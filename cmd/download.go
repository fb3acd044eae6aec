package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/desertthunder/pldl/internal/formatter"
	"github.com/desertthunder/pldl/internal/library"
	"github.com/desertthunder/pldl/internal/models"
	"github.com/desertthunder/pldl/internal/pipeline"
	"github.com/desertthunder/pldl/internal/repositories"
	"github.com/desertthunder/pldl/internal/shared"
	"github.com/desertthunder/pldl/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file at path, falling back to defaults when it
// is absent or unreadable.
func (r *Runner) loadConfig(path string) *shared.Config {
	if r.config != nil {
		return r.config
	}

	if _, err := os.Stat(path); err == nil {
		if config, err := shared.LoadConfig(path); err == nil {
			r.config = config
			return config
		} else {
			r.logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	r.config = shared.DefaultConfig()
	return r.config
}

// pipelineConfig translates the TOML downloader section (seconds as floats)
// into the pipeline's typed config.
func pipelineConfig(dl shared.DownloaderConfig) pipeline.Config {
	cfg := pipeline.DefaultConfig()

	if dl.SearchWorkers > 0 {
		cfg.SearchWorkers = dl.SearchWorkers
	}
	if dl.DownloadWorkers > 0 {
		cfg.DownloadWorkers = dl.DownloadWorkers
	}
	if dl.MaxSearchRetries > 0 {
		cfg.MaxSearchRetries = dl.MaxSearchRetries
	}
	if dl.MaxDownloadRetries > 0 {
		cfg.MaxDownloadRetries = dl.MaxDownloadRetries
	}
	if dl.SearchDelayMin > 0 {
		cfg.SearchDelayMin = time.Duration(dl.SearchDelayMin * float64(time.Second))
	}
	if dl.SearchDelayMax > 0 {
		cfg.SearchDelayMax = time.Duration(dl.SearchDelayMax * float64(time.Second))
	}
	if dl.SearchRate > 0 {
		cfg.SearchRate = dl.SearchRate
	}
	if dl.DownloadBackoffBase > 0 {
		cfg.DownloadBackoffBase = time.Duration(dl.DownloadBackoffBase * float64(time.Second))
	}
	if dl.QueueCapacity > 0 {
		cfg.QueueCapacity = dl.QueueCapacity
	}
	if dl.PreDownloadThreshold > 0 {
		cfg.PreDownloadThreshold = dl.PreDownloadThreshold
	}

	return cfg
}

// Download exports the playlist, builds the job list against the local
// inventory, and runs the pipeline until it drains or the user interrupts.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	playlistArg := cmd.StringArg("playlist")
	if playlistArg == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd.String("config"))

	if err := ytdlp.CheckDependencies(); err != nil {
		return err
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("%w: pass --token or set SPOTIFY_ACCESS_TOKEN", shared.ErrNotAuthenticated)
	}
	if err := svc.Authenticate(ctx, map[string]string{"access_token": token}); err != nil {
		return err
	}

	playlistID := shared.ExtractPlaylistID(playlistArg)
	r.logger.Info("exporting playlist", "playlist_id", playlistID)

	export, err := svc.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	r.logger.Info("playlist exported", "name", export.Playlist.Name, "tracks", len(export.Tracks))

	outputRoot := cmd.String("output")
	if outputRoot == "" {
		outputRoot = config.Library.OutputDir
	}
	outputDir := filepath.Join(outputRoot, shared.SanitizeFilename(export.Playlist.Name))
	if err := library.EnsureDir(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	existing, err := library.Scan(outputDir)
	if err != nil {
		return fmt.Errorf("failed to scan output directory: %w", err)
	}

	db, err := shared.NewDatabase(config.Library.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	repo := repositories.NewDownloadRepository(db)

	// The skip set is the union of the directory scan and recorded completions,
	// so files renamed after a completed run are not fetched again.
	if done, err := repo.CompletedFilenames(playlistID); err == nil {
		for filename := range done {
			existing[filename] = true
		}
	} else {
		r.logger.Warn("failed to read download history", "error", err)
	}

	jobs, skipped := pipeline.BuildJobs(export.Tracks, existing, outputDir)
	if len(jobs) == 0 {
		r.writePlain("Nothing to do: all %d tracks are already downloaded.\n", skipped)
		return nil
	}
	r.logger.Info("starting pipeline", "jobs", len(jobs), "skipped", skipped)

	cfg := pipelineConfig(config.Downloader)
	if n := cmd.Int("search-workers"); n > 0 {
		cfg.SearchWorkers = n
	}
	if n := cmd.Int("download-workers"); n > 0 {
		cfg.DownloadWorkers = n
	}

	tool := ytdlp.NewClient(ytdlp.Options{
		AudioFormat:  config.Downloader.AudioFormat,
		AudioQuality: config.Downloader.AudioQuality,
		CookiesFile:  config.Downloader.CookiesFile,
	})

	notify := func(completed, total int) {
		r.writePlain("%s\n", formatter.Progress(completed, total))
	}

	coordinator, err := pipeline.NewCoordinator(cfg, tool, tool, r.logger, notify)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := coordinator.Run(runCtx, jobs)

	r.recordRun(repo, playlistID, summary)
	r.writePlain("%s", formatter.Summary(summary, skipped))

	if summary.Interrupted > 0 {
		return fmt.Errorf("interrupted: %d tracks were not processed", summary.Interrupted)
	}
	return nil
}

// recordRun persists one history row per terminal job. Persistence failures
// are logged, not fatal: the files are already on disk.
func (r *Runner) recordRun(repo *repositories.DownloadRepository, playlistID string, summary *pipeline.Summary) {
	persist := func(jobs []*pipeline.Job) {
		for _, job := range jobs {
			query := job.Query()
			failReason := ""
			if err := job.Err(); err != nil {
				failReason = err.Error()
			}

			record := models.NewDownloadRecord(
				playlistID,
				query.Title,
				query.Artist,
				query.Filename,
				job.ResolvedURL(),
				job.Status().String(),
				failReason,
			)
			if err := repo.Create(record); err != nil {
				r.logger.Warn("failed to record download", "track", query.Title, "error", err)
			}
		}
	}

	persist(summary.Completed)
	persist(summary.SearchFailed)
	persist(summary.DownloadFailed)
}
