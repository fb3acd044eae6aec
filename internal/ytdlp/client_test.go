package ytdlp

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

var errTest = errors.New("exit status 1")

func bufFrom(s string) *bytes.Buffer {
	return bytes.NewBufferString(s)
}

func TestSearchArgs(t *testing.T) {
	t.Run("single result search with id only", func(t *testing.T) {
		c := NewClient(Options{})
		args := c.searchArgs("song artist")

		if args[0] != "ytsearch1:song artist" {
			t.Errorf("args[0] = %q, want ytsearch1 prefix", args[0])
		}
		for _, want := range []string{"--get-id", "--skip-download", "--no-warnings"} {
			if !slices.Contains(args, want) {
				t.Errorf("searchArgs() missing %s", want)
			}
		}
		if slices.Contains(args, "--cookies") {
			t.Error("searchArgs() should not include cookies without a file")
		}
	})

	t.Run("cookies appended when file exists", func(t *testing.T) {
		dir := t.TempDir()
		cookies := filepath.Join(dir, "cookies.txt")
		if err := os.WriteFile(cookies, []byte("# Netscape"), 0644); err != nil {
			t.Fatalf("failed to write cookies: %v", err)
		}

		c := NewClient(Options{CookiesFile: cookies})
		args := c.searchArgs("song")

		i := slices.Index(args, "--cookies")
		if i < 0 || i+1 >= len(args) || args[i+1] != cookies {
			t.Errorf("searchArgs() = %v, want --cookies %s", args, cookies)
		}
	})

	t.Run("missing cookies file skipped", func(t *testing.T) {
		c := NewClient(Options{CookiesFile: "/nonexistent/cookies.txt"})
		if slices.Contains(c.searchArgs("song"), "--cookies") {
			t.Error("searchArgs() should skip cookies when the file is missing")
		}
	})
}

func TestFetchArgs(t *testing.T) {
	c := NewClient(Options{AudioFormat: "mp3", AudioQuality: "192K"})
	args := c.fetchArgs("https://www.youtube.com/watch?v=abc", "/music/Artist - Song.%(ext)s")

	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("fetchArgs() last arg = %q, want the URL", args[len(args)-1])
	}

	pairs := map[string]string{
		"--audio-format":  "mp3",
		"--audio-quality": "192K",
		"--output":        "/music/Artist - Song.%(ext)s",
	}
	for flag, want := range pairs {
		i := slices.Index(args, flag)
		if i < 0 || i+1 >= len(args) {
			t.Fatalf("fetchArgs() missing %s", flag)
		}
		if args[i+1] != want {
			t.Errorf("%s = %q, want %q", flag, args[i+1], want)
		}
	}

	for _, want := range []string{"--extract-audio", "--no-playlist", "--embed-metadata", "--quiet"} {
		if !slices.Contains(args, want) {
			t.Errorf("fetchArgs() missing %s", want)
		}
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{})
	if c.opts.Binary != "yt-dlp" {
		t.Errorf("Binary = %q, want yt-dlp", c.opts.Binary)
	}
	if c.opts.AudioFormat != "best" {
		t.Errorf("AudioFormat = %q, want best", c.opts.AudioFormat)
	}
	if c.opts.AudioQuality != "320K" {
		t.Errorf("AudioQuality = %q, want 320K", c.opts.AudioQuality)
	}
}

func TestStderrTail(t *testing.T) {
	t.Run("last line returned", func(t *testing.T) {
		var buf strings.Builder
		buf.WriteString("warning: first\nERROR: video unavailable\n")
		got := stderrTail(bufFrom(buf.String()), errTest)
		if got != "ERROR: video unavailable" {
			t.Errorf("stderrTail() = %q", got)
		}
	})

	t.Run("falls back to exec error", func(t *testing.T) {
		got := stderrTail(bufFrom(""), errTest)
		if got != errTest.Error() {
			t.Errorf("stderrTail() = %q, want %q", got, errTest.Error())
		}
	})
}
