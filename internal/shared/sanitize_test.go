package shared

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "invalid characters replaced",
			input: "Song: Title/Name?",
			want:  "Song_ Title_Name",
		},
		{
			name:  "underscore runs collapse",
			input: "a//b::c",
			want:  "a_b_c",
		},
		{
			name:  "leading and trailing dots stripped",
			input: "  .hidden. ",
			want:  "hidden",
		},
		{
			name:  "empty becomes untitled",
			input: "???",
			want:  "untitled",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("long names truncated preserving extension", func(t *testing.T) {
		long := strings.Repeat("a", 250) + ".mp3"
		got := SanitizeFilename(long)
		if len(got) > 200 {
			t.Errorf("SanitizeFilename() length = %d, want <= 200", len(got))
		}
		if !strings.HasSuffix(got, ".mp3") {
			t.Errorf("SanitizeFilename() = %q, want .mp3 suffix", got)
		}
	})
}

func TestSimplifySearchQuery(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "parentheticals and features removed",
			title:  "Song (Remix) [Official]",
			artist: "Artist feat. Other",
			want:   "Song Artist feat. Other",
		},
		{
			name:   "dash suffix dropped",
			title:  "Song - 2011 Remaster",
			artist: "Artist",
			want:   "Song Artist",
		},
		{
			name:   "feature credit in title removed",
			title:  "Song feat. Someone Else",
			artist: "Artist",
			want:   "Song Artist",
		},
		{
			name:   "whitespace normalized",
			title:  "  Song   Title ",
			artist: " Artist  Name ",
			want:   "Song Title Artist Name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := SimplifySearchQuery(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("SimplifySearchQuery(%q, %q) = %q, want %q", tt.title, tt.artist, got, tt.want)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "full URL",
			input: "https://open.spotify.com/playlist/ABC123",
			want:  "ABC123",
		},
		{
			name:  "URL with query parameters",
			input: "https://open.spotify.com/playlist/ABC123?si=xyz",
			want:  "ABC123",
		},
		{
			name:  "bare ID passes through",
			input: "ABC123",
			want:  "ABC123",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPlaylistID(tt.input)
			if got != tt.want {
				t.Errorf("ExtractPlaylistID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
