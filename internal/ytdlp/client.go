// package ytdlp wraps the yt-dlp binary as the pipeline's search and fetch tools.
//
// Search resolves a free-text query to a watch URL via a ytsearch1: invocation;
// Fetch downloads the audio at a URL and transcodes it through ffmpeg. Both run
// under [exec.CommandContext] so cancelling the pipeline kills the subprocess.
package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/desertthunder/pldl/internal/shared"
)

const (
	defaultBinary = "yt-dlp"
	watchURL      = "https://www.youtube.com/watch?v="
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures the yt-dlp client.
type Options struct {
	Binary       string // yt-dlp binary name or path (default "yt-dlp")
	AudioFormat  string // mp3, m4a, best, ...
	AudioQuality string // 128K, 192K, 256K, 320K
	CookiesFile  string // optional cookies file for age-restricted content
}

// Client invokes yt-dlp for searches and downloads.
type Client struct {
	opts Options
}

// NewClient creates a Client with the given options, applying defaults.
func NewClient(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = "best"
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "320K"
	}
	return &Client{opts: opts}
}

// DependencyReport describes which external binaries were found on PATH.
type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

// DependencyStatus probes PATH for yt-dlp and ffmpeg.
func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(defaultBinary); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies returns an error when a required binary is missing.
func CheckDependencies() error {
	report := DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("%w: yt-dlp is not installed or not on PATH", shared.ErrMissingTool)
	}
	if !report.FFmpegFound {
		return fmt.Errorf("%w: ffmpeg is required for audio extraction and was not found on PATH", shared.ErrMissingTool)
	}
	return nil
}

// searchArgs builds the argument list for resolving a query to a video ID.
func (c *Client) searchArgs(query string) []string {
	args := []string{
		fmt.Sprintf("ytsearch1:%s", query),
		"--get-id",
		"--skip-download",
		"--no-warnings",
		"--user-agent", userAgent,
	}
	args = c.appendCookies(args)
	return args
}

// fetchArgs builds the argument list for downloading audio to the output template.
func (c *Client) fetchArgs(url, outputTemplate string) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", c.opts.AudioFormat,
		"--audio-quality", c.opts.AudioQuality,
		"--format", "bestaudio[ext=m4a]/bestaudio[ext=webm]/bestaudio/best",
		"--output", outputTemplate,
		"--no-playlist",
		"--embed-metadata",
		"--add-metadata",
		"--no-mtime",
		"--no-warnings",
		"--quiet",
		"--geo-bypass",
	}
	args = c.appendCookies(args)
	return append(args, url)
}

func (c *Client) appendCookies(args []string) []string {
	if c.opts.CookiesFile == "" {
		return args
	}
	if _, err := os.Stat(c.opts.CookiesFile); err != nil {
		return args
	}
	return append(args, "--cookies", c.opts.CookiesFile)
}

// Search resolves a text query to a watch URL using a single-result search.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	cmd := exec.CommandContext(ctx, c.opts.Binary, c.searchArgs(query)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s", shared.ErrToolExited, stderrTail(&stderr, err))
	}

	videoID := strings.TrimSpace(stdout.String())
	if videoID == "" {
		return "", fmt.Errorf("%w: no results for %q", shared.ErrTrackNotFound, query)
	}

	return watchURL + videoID, nil
}

// Fetch downloads and transcodes the audio at url into the output template.
// The template carries a %(ext)s placeholder so yt-dlp picks the extension.
func (c *Client) Fetch(ctx context.Context, url, outputTemplate string) error {
	cmd := exec.CommandContext(ctx, c.opts.Binary, c.fetchArgs(url, outputTemplate)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", shared.ErrToolExited, stderrTail(&stderr, err))
	}

	return nil
}

// stderrTail keeps error messages bounded: the last line of stderr, or the exec
// error when yt-dlp printed nothing.
func stderrTail(stderr *bytes.Buffer, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return err.Error()
	}
	return last
}
