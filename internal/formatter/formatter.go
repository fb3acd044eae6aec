// package formatter renders run results for the terminal with [lipgloss]
// styles.
package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/pldl/internal/pipeline"
)

// failedSampleLimit bounds how many failed tracks are listed per bucket so a
// large playlist cannot flood the terminal.
const failedSampleLimit = 10

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Summary renders the final report for a pipeline run: one counts block, then
// a bounded sample of failed tracks per failure bucket. skipped is the number
// of tracks dropped before the run because their files already existed.
func Summary(summary *pipeline.Summary, skipped int) string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Download summary"))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  %s  %d\n", styles.ok.Render("completed"), len(summary.Completed))
	fmt.Fprintf(&b, "  %s  %d\n", styles.err.Render("search failed"), len(summary.SearchFailed))
	fmt.Fprintf(&b, "  %s  %d\n", styles.err.Render("download failed"), len(summary.DownloadFailed))
	if skipped > 0 {
		fmt.Fprintf(&b, "  %s  %d\n", styles.help.Render("already present"), skipped)
	}
	if summary.Interrupted > 0 {
		fmt.Fprintf(&b, "  %s  %d\n", styles.warn.Render("interrupted"), summary.Interrupted)
	}

	b.WriteString(failedSection("Search failures", summary.SearchFailed))
	b.WriteString(failedSection("Download failures", summary.DownloadFailed))

	return b.String()
}

// Progress renders a one-line progress note for the given counts.
func Progress(completed, total int) string {
	return styles.help.Render(fmt.Sprintf("downloaded %d/%d", completed, total))
}

func failedSection(heading string, jobs []*pipeline.Job) string {
	if len(jobs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.warn.Render(heading))
	b.WriteString("\n")

	limit := len(jobs)
	if limit > failedSampleLimit {
		limit = failedSampleLimit
	}
	for _, job := range jobs[:limit] {
		query := job.Query()
		line := fmt.Sprintf("  - %s - %s", query.Artist, query.Title)
		if err := job.Err(); err != nil {
			line += styles.help.Render(fmt.Sprintf(" (%v)", err))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if rest := len(jobs) - limit; rest > 0 {
		b.WriteString(styles.help.Render(fmt.Sprintf("  ... and %d more", rest)))
		b.WriteString("\n")
	}
	return b.String()
}
