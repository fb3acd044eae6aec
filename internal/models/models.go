// package models defines the data model for the playlist downloader
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// DownloadRecord is the persisted outcome of one pipeline job: which track was
// processed for which playlist, where it landed, and how the job ended.
type DownloadRecord struct {
	id         string
	playlistID string
	title      string
	artist     string
	filename   string
	url        string
	status     string
	failReason string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDownloadRecord creates a DownloadRecord for a terminal job.
func NewDownloadRecord(playlistID, title, artist, filename, url, status, failReason string) *DownloadRecord {
	now := time.Now().UTC()
	return &DownloadRecord{
		playlistID: playlistID,
		title:      title,
		artist:     artist,
		filename:   filename,
		url:        url,
		status:     status,
		failReason: failReason,
		createdAt:  now,
		updatedAt:  now,
	}
}

// HydrateDownloadRecord reconstructs a DownloadRecord from database columns.
func HydrateDownloadRecord(id, playlistID, title, artist, filename, url, status, failReason string, createdAt, updatedAt time.Time) *DownloadRecord {
	return &DownloadRecord{
		id:         id,
		playlistID: playlistID,
		title:      title,
		artist:     artist,
		filename:   filename,
		url:        url,
		status:     status,
		failReason: failReason,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (d *DownloadRecord) ID() string           { return d.id }
func (d *DownloadRecord) CreatedAt() time.Time { return d.createdAt }
func (d *DownloadRecord) UpdatedAt() time.Time { return d.updatedAt }

// SetID assigns the unique identifier; called by the repository on insert.
func (d *DownloadRecord) SetID(id string) { d.id = id }

func (d *DownloadRecord) PlaylistID() string { return d.playlistID }
func (d *DownloadRecord) Title() string      { return d.title }
func (d *DownloadRecord) Artist() string     { return d.artist }
func (d *DownloadRecord) Filename() string   { return d.filename }
func (d *DownloadRecord) URL() string        { return d.url }
func (d *DownloadRecord) Status() string     { return d.status }
func (d *DownloadRecord) FailReason() string { return d.failReason }

// Validate checks required fields before persistence.
func (d *DownloadRecord) Validate() error {
	if d.id == "" {
		return fmt.Errorf("download record missing id")
	}
	if d.playlistID == "" {
		return fmt.Errorf("download record missing playlist id")
	}
	if d.filename == "" {
		return fmt.Errorf("download record missing filename")
	}
	if d.status == "" {
		return fmt.Errorf("download record missing status")
	}
	return nil
}
