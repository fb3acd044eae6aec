// package repositories provides the persistence layer for download history.
//
// DownloadRepository implements models.Repository[*models.DownloadRecord] on
// SQLite, recording every terminal pipeline job so interrupted runs can resume
// without re-downloading completed tracks.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/pldl/internal/models"
	"github.com/desertthunder/pldl/internal/shared"
)

const downloadsSchema = `
CREATE TABLE IF NOT EXISTS downloads (
	id TEXT PRIMARY KEY,
	playlist_id TEXT NOT NULL,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	filename TEXT NOT NULL,
	url TEXT,
	status TEXT NOT NULL,
	fail_reason TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(playlist_id, filename)
);
CREATE INDEX IF NOT EXISTS idx_downloads_playlist ON downloads(playlist_id);
`

// Migrate creates the downloads schema if it does not exist.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(downloadsSchema); err != nil {
		return fmt.Errorf("failed to migrate downloads schema: %w", err)
	}
	return nil
}

// DownloadRepository handles CRUD operations for download records.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a new [models.DownloadRecord] with a generated ID.
//
// A record for the same playlist and filename replaces the previous one, so a
// re-run that resolves a previously failed track keeps only the latest outcome.
func (r *DownloadRepository) Create(record *models.DownloadRecord) error {
	record.SetID(shared.GenerateID())

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO downloads (id, playlist_id, title, artist, filename, url, status, fail_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id, filename) DO UPDATE SET
			url = excluded.url,
			status = excluded.status,
			fail_reason = excluded.fail_reason,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		record.ID(),
		record.PlaylistID(),
		record.Title(),
		record.Artist(),
		record.Filename(),
		record.URL(),
		record.Status(),
		record.FailReason(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download record: %w", err)
	}

	return nil
}

// Get retrieves a download record by ID.
func (r *DownloadRepository) Get(id string) (*models.DownloadRecord, error) {
	query := `
		SELECT id, playlist_id, title, artist, filename, url, status, fail_reason, created_at, updated_at
		FROM downloads
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update rewrites the mutable columns of an existing record.
func (r *DownloadRepository) Update(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE downloads
		SET url = ?, status = ?, fail_reason = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(query, record.URL(), record.Status(), record.FailReason(), time.Now().UTC(), record.ID())
	if err != nil {
		return fmt.Errorf("failed to update download record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("download record %s not found", record.ID())
	}
	return nil
}

// Delete removes a download record by ID.
func (r *DownloadRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM downloads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete download record: %w", err)
	}
	return nil
}

// List retrieves records matching the given criteria (supported keys: playlist_id, status).
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `
		SELECT id, playlist_id, title, artist, filename, url, status, fail_reason, created_at, updated_at
		FROM downloads
	`
	args := []any{}
	where := ""

	if v, ok := criteria["playlist_id"]; ok {
		where = " WHERE playlist_id = ?"
		args = append(args, v)
	}
	if v, ok := criteria["status"]; ok {
		if where == "" {
			where = " WHERE status = ?"
		} else {
			where += " AND status = ?"
		}
		args = append(args, v)
	}

	rows, err := r.db.Query(query+where+" ORDER BY updated_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list download records: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListByPlaylist retrieves every record for the given playlist.
func (r *DownloadRepository) ListByPlaylist(playlistID string) ([]*models.DownloadRecord, error) {
	return r.List(map[string]any{"playlist_id": playlistID})
}

// CompletedFilenames returns the set of filenames already recorded as completed
// for the given playlist. Consulted alongside the filesystem scan when building
// a job list, so re-runs skip finished work even if files were moved.
func (r *DownloadRepository) CompletedFilenames(playlistID string) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT filename FROM downloads WHERE playlist_id = ? AND status = 'completed'`,
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed filenames: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, fmt.Errorf("failed to scan filename: %w", err)
		}
		completed[filename] = true
	}
	return completed, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *DownloadRepository) scanOne(row *sql.Row) (*models.DownloadRecord, error) {
	record, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("download record not found")
	}
	return record, err
}

func (r *DownloadRepository) scanRow(row scannable) (*models.DownloadRecord, error) {
	var (
		id, playlistID, title, artist, filename, status string
		url, failReason                                 sql.NullString
		createdAt, updatedAt                            time.Time
	)

	if err := row.Scan(&id, &playlistID, &title, &artist, &filename, &url, &status, &failReason, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan download record: %w", err)
	}

	return models.HydrateDownloadRecord(id, playlistID, title, artist, filename, url.String, status, failReason.String, createdAt, updatedAt), nil
}
