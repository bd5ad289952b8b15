package components

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// VisibleLen returns the visible character width of s in terminal cells.
// ANSI escape sequences are ignored. Wide characters (CJK, emoji) are
// counted as width 2. Zero-width joiners, combining marks, and other
// zero-width characters are handled correctly via grapheme clustering.
func VisibleLen(s string) int {
	return ansi.StringWidth(s)
}

// Truncate truncates s to at most maxWidth visible characters, preserving
// any ANSI escape sequences that appear before the cut point. If s is
// already within maxWidth, it is returned unchanged. Used to fit a job name
// into its tab-bar slot.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxWidth, "")
}

// TruncateWithTail truncates s to at most maxWidth visible characters,
// appending tail (e.g. "...") if truncation occurs. The tail itself counts
// toward maxWidth, so the visible content will be (maxWidth - len(tail))
// characters followed by tail. box.go uses this for a title that doesn't
// fit the box width.
func TruncateWithTail(s string, maxWidth int, tail string) string {
	if maxWidth <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxWidth, tail)
}

// PadRight pads s with trailing spaces so that its visible width equals
// width. If s is already wider than width, it is returned unchanged. Used
// to fill a box's content lines out to its full width.
func PadRight(s string, width int) string {
	vis := VisibleLen(s)
	if vis >= width {
		return s
	}
	return s + strings.Repeat(" ", width-vis)
}
