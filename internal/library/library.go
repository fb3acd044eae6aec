// package library reports which tracks already exist on disk.
//
// The scan runs once per pipeline run, before the job list is built, so tracks
// that were downloaded by a previous (possibly interrupted) run are skipped.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// audioExtensions are the file types counted as downloaded audio.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".opus": true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".aac":  true,
	".webm": true,
}

// Scan returns the set of audio file basenames (without extension) in dir.
// A missing directory yields an empty set, not an error.
func Scan(dir string) (map[string]bool, error) {
	files := make(map[string]bool)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if audioExtensions[ext] {
			files[strings.TrimSuffix(name, filepath.Ext(name))] = true
		}
	}

	return files, nil
}

// EnsureDir creates dir (and parents) when it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
