// Package ui is the bubbletea program that drives the multi-tab terminal
// dashboard: one tab per job, each showing that job's term.Screen content,
// current phase, and metrics snapshot, navigated and driven by
// internal/inputrouter.
//
// The tea.Model/Update/View split and the tick-driven refresh loop follow
// the bubbletea event-loop convention; tab rendering reuses
// pkg/components.RenderBox for the bordered-box look instead of reinventing
// box drawing.
package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/pmrun/internal/orchestrator"
	"gitlab.com/tinyland/lab/pmrun/internal/uiflush"
	"gitlab.com/tinyland/lab/pmrun/pkg/components"
	"gitlab.com/tinyland/lab/pmrun/pkg/term"
	"gitlab.com/tinyland/lab/pmrun/pkg/theme"
)

// progressBar renders a job's Progress.Percent as a bubbles/progress
// gradient bar, complementing components.Gauge's sub-cell memory meter: a
// percent (not a raw counter) gets the library widget built for it.
var progressBar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage())

// trueColor reports whether the host terminal was detected as supporting
// 24-bit color; ColorRGB cells are quantized to the 256-color cube when it
// doesn't, so PTY output stays legible over a dumb SSH client or tmux
// session that strips truecolor escapes.
var trueColor = DetectTrueColor()

// memGaugeMax is the denominator used for the focused job's memory gauge.
// Package-manager jobs rarely hold more than a few hundred MB resident; a
// fixed 512MiB ceiling keeps the gauge legible without per-plugin tuning.
const memGaugeMax = 512 * 1024 * 1024

// cellStyle converts one term.Cell's Style into a lipgloss.Style.
func cellStyle(s term.Style) lipgloss.Style {
	st := lipgloss.NewStyle()
	if fg, ok := lipglossColor(s.FG); ok {
		st = st.Foreground(fg)
	}
	if bg, ok := lipglossColor(s.BG); ok {
		st = st.Background(bg)
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Italic {
		st = st.Italic(true)
	}
	if s.Underline {
		st = st.Underline(true)
	}
	if s.Strikethrough {
		st = st.Strikethrough(true)
	}
	if s.Reverse {
		st = st.Reverse(true)
	}
	if s.Blink {
		st = st.Blink(true)
	}
	return st
}

// lipglossColor maps a term.Color onto a lipgloss.Color, reporting false
// for ColorDefault (no explicit color to set).
func lipglossColor(c term.Color) (lipgloss.Color, bool) {
	switch c.Kind {
	case term.ColorDefault:
		return "", false
	case term.ColorNamed:
		return lipgloss.Color(fmt.Sprintf("%d", c.Index)), true
	case term.ColorBright:
		return lipgloss.Color(fmt.Sprintf("%d", 8+c.Index)), true
	case term.ColorPalette:
		return lipgloss.Color(fmt.Sprintf("%d", c.Index)), true
	case term.ColorRGB:
		if trueColor {
			return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)), true
		}
		return lipgloss.Color(fmt.Sprintf("%d", rgbToANSI256(c.R, c.G, c.B))), true
	default:
		return "", false
	}
}

// rgbToANSI256 quantizes a 24-bit color onto the standard 6x6x6 xterm color
// cube (indices 16-231), the fallback palette for terminals without
// truecolor support.
func rgbToANSI256(r, g, b uint8) int {
	toCube := func(v uint8) int {
		return int(v) * 5 / 255
	}
	rc, gc, bc := toCube(r), toCube(g), toCube(b)
	return 16 + 36*rc + 6*gc + bc
}

// renderStyledLine renders a slice of cells into one line of ANSI text,
// grouping consecutive cells that share a style into a single lipgloss
// render call rather than one per cell.
func renderStyledLine(cells []term.Cell) string {
	if len(cells) == 0 {
		return ""
	}
	var b strings.Builder
	runStart := 0
	for i := 1; i <= len(cells); i++ {
		if i < len(cells) && cells[i].Style == cells[runStart].Style {
			continue
		}
		var text strings.Builder
		for _, c := range cells[runStart:i] {
			text.WriteRune(c.Ch)
		}
		b.WriteString(cellStyle(cells[runStart].Style).Render(text.String()))
		runStart = i
	}
	return b.String()
}

// renderScreen renders every visible row of screen as styled text, one
// line per row.
func renderScreen(screen *term.Screen) string {
	rows := screen.Rows()
	lines := make([]string, rows)
	for y := 0; y < rows; y++ {
		lines[y] = renderStyledLine(screen.StyledLine(y))
	}
	return strings.Join(lines, "\n")
}

var (
	focusedTabStyle   = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color(theme.Current.Accent)).Padding(0, 1)
	unfocusedTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Current.Dim)).Padding(0, 1)
)

// statusColor maps a job's state onto the active theme's status palette,
// so a TOML theme override recolors the dashboard without touching render
// logic.
func statusColor(state orchestrator.JobState) lipgloss.Color {
	switch state {
	case orchestrator.JobRunning, orchestrator.JobWaiting:
		return lipgloss.Color(theme.Current.StatusWarn)
	case orchestrator.JobDone:
		return lipgloss.Color(theme.Current.StatusOK)
	case orchestrator.JobFailed, orchestrator.JobCancelled:
		return lipgloss.Color(theme.Current.StatusError)
	default:
		return lipgloss.Color(theme.Current.StatusUnknown)
	}
}

// renderTabBar renders the row of job-name tabs, highlighting focused and
// color-coding each by job state.
func renderTabBar(jobs []orchestrator.Job, focused int, width int) string {
	segs := make([]string, len(jobs))
	for i, j := range jobs {
		label := fmt.Sprintf("%d:%s", i+1, components.Truncate(j.Name, 16))
		style := lipgloss.NewStyle().Foreground(statusColor(j.State))
		if i == focused {
			style = focusedTabStyle.Inherit(style)
		} else {
			style = unfocusedTabStyle.Inherit(style)
		}
		segs[i] = style.Render(label)
	}
	bar := strings.Join(segs, "")
	return lipgloss.NewStyle().MaxWidth(width).Render(bar)
}

// renderStatusLine renders the focused job's current phase/status/error,
// its most recent Progress message as a percent bar, plus a memory gauge
// built from its accumulated metrics snapshot, using
// pkg/components.Gauge's sub-cell bar renderer and bubbles/progress for
// the percent bar.
//
// flusher is nil-safe: it is absent in tests that exercise rendering
// without a running UI event handler.
func renderStatusLine(j orchestrator.Job, flusher *uiflush.Handler) string {
	phase := "-"
	if j.HasCurrentPhase {
		phase = j.CurrentPhase.Display()
	}
	line := fmt.Sprintf("[%s] phase=%s packages=%d", j.State, phase, j.PackagesUpdated)
	if j.Error != "" {
		line += "  error=" + j.Error
	}
	if flusher != nil {
		if tab, ok := flusher.Tab(j.Name); ok && tab.HasProgress {
			if p := tab.LastProgress.Percent; p != nil {
				line += "  " + progressBar.ViewAs(*p/100)
			}
			if tab.LastProgress.Message != "" {
				line += "  " + tab.LastProgress.Message
			}
		}
	}
	if j.Store != nil {
		gauge := components.NewGauge(components.GaugeStyle{
			Width:             12,
			ShowPercent:       true,
			Label:             "mem",
			LabelWidth:        4,
			FilledColor:       theme.Current.GaugeFilled,
			EmptyColor:        theme.Current.GaugeEmpty,
			WarningThreshold:  0.7,
			CriticalThreshold: 0.9,
			WarningColor:      theme.Current.GaugeWarn,
			CriticalColor:     theme.Current.GaugeCrit,
		})
		peak := float64(j.Store.Accumulated().PeakMemory)
		line += "  " + gauge.Render(peak, memGaugeMax, 12)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Current.Foreground)).Render(line)
}

// renderTab composes the tab bar, status line, and the focused job's
// screen into the full frame, using RenderBox for the screen's border.
func renderTab(jobs []orchestrator.Job, focused int, width, height int, flusher *uiflush.Handler) string {
	if len(jobs) == 0 {
		return "no jobs configured"
	}
	if focused < 0 || focused >= len(jobs) {
		focused = 0
	}
	bar := renderTabBar(jobs, focused, width)
	status := renderStatusLine(jobs[focused], flusher)

	boxHeight := height - lipgloss.Height(bar) - lipgloss.Height(status) - 1
	if boxHeight < 1 {
		boxHeight = 1
	}

	screen := jobs[focused].Screen
	content := renderScreen(screen)
	box := components.RenderBox(content, width, boxHeight, components.BoxStyle{
		Border:     components.BorderRounded,
		Title:      jobs[focused].Name,
		TitleAlign: components.AlignLeft,
	})

	return strings.Join([]string{bar, status, box}, "\n")
}

var ansiEscapeSeq = regexp.MustCompile("\x1b\\[[0-9;]*m")

// stripANSI removes the SGR escape sequences renderStyledLine's lipgloss
// calls embed, for plain-text log saves.
func stripANSI(s string) string {
	return ansiEscapeSeq.ReplaceAllString(s, "")
}

// helpOverlay renders the key-binding help screen.
func helpOverlay() string {
	lines := []string{
		"pmrun - key bindings",
		"",
		"ctrl+tab / ctrl+shift+tab   next / previous tab",
		"alt+1..9                    jump to tab N",
		"shift+pageup/pagedown       scroll output",
		"shift+home/end              scroll to top / bottom",
		"ctrl+p / f8                 resume a job paused between phases",
		"ctrl+r / f9                 retry the failed phase",
		"ctrl+s / f10                save the focused tab's visible screen",
		"ctrl+h                      toggle this help screen",
		"ctrl+q                      quit",
		"",
		"press any key to close",
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
