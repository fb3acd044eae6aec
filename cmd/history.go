package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pldl/internal/models"
	"github.com/desertthunder/pldl/internal/repositories"
	"github.com/desertthunder/pldl/internal/shared"
	"github.com/urfave/cli/v3"
)

// historyRow is the JSON shape for one download record.
type historyRow struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// History lists recorded downloads for a playlist, optionally filtered by
// status.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	playlistArg := cmd.StringArg("playlist")
	if playlistArg == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd.String("config"))
	playlistID := shared.ExtractPlaylistID(playlistArg)

	db, err := shared.NewDatabase(config.Library.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	repo := repositories.NewDownloadRepository(db)

	criteria := map[string]any{"playlist_id": playlistID}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	records, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list download history: %w", err)
	}

	if cmd.Bool("json") {
		rows := make([]historyRow, 0, len(records))
		for _, record := range records {
			rows = append(rows, rowFor(record))
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		r.writePlain("No download history for playlist %s.\n", playlistID)
		return nil
	}

	r.writePlainln("%d records for playlist %s:", len(records), playlistID)
	for _, record := range records {
		line := fmt.Sprintf("  [%s] %s - %s", record.Status(), record.Artist(), record.Title())
		if reason := record.FailReason(); reason != "" {
			line += fmt.Sprintf(" (%s)", reason)
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

func rowFor(record *models.DownloadRecord) historyRow {
	return historyRow{
		Title:      record.Title(),
		Artist:     record.Artist(),
		Filename:   record.Filename(),
		Status:     record.Status(),
		FailReason: record.FailReason(),
		UpdatedAt:  record.UpdatedAt().Format("2006-01-02 15:04:05"),
	}
}
