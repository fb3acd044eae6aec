package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pldl/internal/repositories"
	"github.com/desertthunder/pldl/internal/shared"
	"github.com/desertthunder/pldl/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.writePlain("✓ Config file created at %s\n", configPath)
	r.writePlain("Fill in credentials.spotify before running 'pldl auth'.\n")
	return nil
}

// SetupDatabase initializes the download-history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Library.DatabasePath)

	db, err := shared.NewDatabase(config.Library.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Library.DatabasePath)
	return nil
}

// Deps reports whether yt-dlp and ffmpeg are installed.
func (r *Runner) Deps(ctx context.Context, cmd *cli.Command) error {
	report := ytdlp.DependencyStatus()

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	describe := func(name string, found bool, path string) {
		if found {
			r.writePlain("✓ %s found at %s\n", name, path)
		} else {
			r.writePlain("✗ %s not found on PATH\n", name)
		}
	}
	describe("yt-dlp", report.YTDLPFound, report.YTDLPPath)
	describe("ffmpeg", report.FFmpegFound, report.FFmpegPath)

	return ytdlp.CheckDependencies()
}
