package capability

import (
	"strings"
	"time"
)

// Utils are the pure helper functions exposed to sandboxed apps (spec.md
// §4.8). They take no host state and can't be used to reach anything
// outside their arguments.
type Utils struct{}

// FormatDate renders t in a fixed, locale-free layout so app output is
// stable regardless of host timezone configuration.
func (Utils) FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// AsciiBoxedTitle draws title inside a single-line ASCII box, the kind of
// screen furniture BBS apps use for headers.
func (Utils) AsciiBoxedTitle(title string) string {
	width := len(title) + 4
	top := "+" + strings.Repeat("-", width-2) + "+"
	mid := "| " + title + " |"
	return top + "\n" + mid + "\n" + top
}

// Separator repeats char width times, clamped to a sane range so a
// misbehaving app can't use it to flood a terminal.
func (Utils) Separator(char rune, width int) string {
	if width < 0 {
		width = 0
	}
	if width > 200 {
		width = 200
	}
	return strings.Repeat(string(char), width)
}
