package shared

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxFilenameLength = 200

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRuns       = regexp.MustCompile(`_+`)
	parenthetical        = regexp.MustCompile(`\([^)]*\)`)
	bracketed            = regexp.MustCompile(`\[[^\]]*\]`)
	featCredit           = regexp.MustCompile(`(?i)\bfeat\.?\s*[^-–—]*`)
	ftCredit             = regexp.MustCompile(`(?i)\bft\.?\s*[^-–—]*`)
	remixTag             = regexp.MustCompile(`(?i)\bremix\b[^-–—]*`)
	remasteredTag        = regexp.MustCompile(`(?i)\bremastered\b`)
	officialTag          = regexp.MustCompile(`(?i)\bofficial\b`)
	spotifyPlaylistURL   = regexp.MustCompile(`https?://open\.spotify\.com/playlist/[\w\d]+`)
)

// SanitizeFilename makes a string safe to use as a filename on Windows, Linux and macOS.
//
// Invalid characters become underscores, runs of underscores collapse to one,
// leading/trailing dots and spaces are stripped, and the result is capped at 200
// characters (preserving any extension). Empty results become "untitled".
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")

	if len(s) > maxFilenameLength {
		ext := filepath.Ext(s)
		base := s[:len(s)-len(ext)]
		available := maxFilenameLength - len(ext)
		if available < 0 {
			available = 0
		}
		if len(base) > available {
			base = base[:available]
		}
		s = base + ext
	}

	if s == "" {
		return "untitled"
	}
	return s
}

// SimplifySearchQuery builds a search string from a track title and artist,
// stripping noise that hurts search accuracy: parenthetical content, feature
// credits, remix/remastered/official tags, and anything after a dash.
func SimplifySearchQuery(title, artist string) string {
	t := parenthetical.ReplaceAllString(title, "")
	t = bracketed.ReplaceAllString(t, "")
	t = featCredit.ReplaceAllString(t, "")
	t = ftCredit.ReplaceAllString(t, "")
	t = remixTag.ReplaceAllString(t, "")
	t = remasteredTag.ReplaceAllString(t, "")
	t = officialTag.ReplaceAllString(t, "")

	for _, dash := range []string{"-", "–", "—"} {
		if i := strings.Index(t, dash); i >= 0 {
			t = t[:i]
		}
	}

	t = strings.Join(strings.Fields(t), " ")
	a := strings.Join(strings.Fields(artist), " ")

	return strings.TrimSpace(t + " " + a)
}

// ExtractPlaylistID pulls the playlist ID out of a Spotify playlist URL, or
// returns the input unchanged when it is already a bare ID.
func ExtractPlaylistID(input string) string {
	if strings.Contains(input, "spotify.com/playlist/") {
		id := input[strings.LastIndex(input, "playlist/")+len("playlist/"):]
		if i := strings.Index(id, "?"); i >= 0 {
			id = id[:i]
		}
		return id
	}
	return input
}

// ValidPlaylistURL reports whether the input looks like a Spotify playlist URL.
func ValidPlaylistURL(input string) bool {
	return spotifyPlaylistURL.MatchString(input)
}

// NormalizeTrackKey produces a case- and whitespace-insensitive key for matching
// tracks across services.
func NormalizeTrackKey(title, artist string) string {
	t := strings.ToLower(strings.Join(strings.Fields(title), " "))
	a := strings.ToLower(strings.Join(strings.Fields(artist), " "))
	return t + "|" + a
}
