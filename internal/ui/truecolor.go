package ui

import "os"

// DetectTrueColor reports whether the host terminal advertises 24-bit color
// support, the signal render.go uses to decide whether term.ColorRGB cells
// can be emitted as-is or must be quantized to the 256-color cube, and that
// cmd/pmrun uses at startup to decide whether to downgrade the active theme
// with theme.Adapt. COLORTERM is the de facto standard most terminal
// emulators set to "truecolor" or "24bit"; TERM_PROGRAM catches a few macOS
// terminals that don't set it.
func DetectTrueColor() bool {
	if v := os.Getenv("COLORTERM"); v == "truecolor" || v == "24bit" {
		return true
	}
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "vscode", "ghostty":
		return true
	}
	return false
}
