package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Downloader  DownloaderConfig  `toml:"downloader"`
	Library     LibraryConfig     `toml:"library"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DownloaderConfig contains pipeline tuning knobs for the search and download stages.
type DownloaderConfig struct {
	SearchWorkers        int     `toml:"search_workers"`
	DownloadWorkers      int     `toml:"download_workers"`
	MaxSearchRetries     int     `toml:"max_search_retries"`
	MaxDownloadRetries   int     `toml:"max_download_retries"`
	SearchDelayMin       float64 `toml:"search_delay_min"`
	SearchDelayMax       float64 `toml:"search_delay_max"`
	SearchRate           float64 `toml:"search_rate"`
	DownloadBackoffBase  float64 `toml:"download_backoff_base"`
	QueueCapacity        int     `toml:"queue_capacity"`
	PreDownloadThreshold int     `toml:"pre_download_threshold"`
	AudioFormat          string  `toml:"audio_format"`
	AudioQuality         string  `toml:"audio_quality"`
	CookiesFile          string  `toml:"cookies_file"`
}

// LibraryConfig contains local storage settings.
type LibraryConfig struct {
	OutputDir    string `toml:"output_dir"`
	DatabasePath string `toml:"database_path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
