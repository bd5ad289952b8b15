package components

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Block characters for sub-cell precision (8 levels per cell).
var gaugeBlocks = [9]rune{
	' ',      // 0/8 empty
	'▏', // 1/8 ▏
	'▎', // 2/8 ▎
	'▍', // 3/8 ▍
	'▌', // 4/8 ▌
	'▋', // 5/8 ▋
	'▊', // 6/8 ▊
	'▉', // 7/8 ▉
	'█', // 8/8 █
}

// GaugeStyle configures the appearance of a horizontal bar gauge. render.go's
// status line uses one Gauge per focused job to show peak resident memory
// against a fixed ceiling.
type GaugeStyle struct {
	Width             int     // total width in cells for the bar portion
	ShowPercent       bool    // show "73%" label after bar
	ShowValue         bool    // show "7.3/10.0" label after bar
	Label             string  // optional left label (e.g., "mem")
	LabelWidth        int     // fixed width for label area (0 = label length + 1)
	FilledColor       string  // hex color for filled portion (default "#4CAF50")
	EmptyColor        string  // hex color for empty portion (default "#333333")
	WarningThreshold  float64 // threshold (0-1) where color changes to warning
	CriticalThreshold float64 // threshold (0-1) where color changes to critical
	WarningColor      string  // hex color for warning (default "#FF9800")
	CriticalColor     string  // hex color for critical (default "#F44336")
}

// Gauge renders a horizontal bar gauge with sub-cell precision.
type Gauge struct {
	style GaugeStyle
}

// NewGauge creates a new Gauge with the given style.
func NewGauge(style GaugeStyle) *Gauge {
	return &Gauge{style: style}
}

// Render renders a gauge bar at the given width. The width parameter overrides
// the style width for this call. value and maxValue define the fill ratio.
func (g *Gauge) Render(value, maxValue float64, width int) string {
	if width <= 0 {
		width = g.style.Width
	}
	if width <= 0 {
		width = 20
	}

	// Clamp ratio to [0, 1].
	ratio := 0.0
	if maxValue > 0 {
		ratio = value / maxValue
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	// Select fill color based on thresholds.
	fillColor := g.style.FilledColor
	if fillColor == "" {
		fillColor = "#4CAF50"
	}
	if g.style.WarningThreshold > 0 && ratio >= g.style.WarningThreshold {
		fillColor = g.style.WarningColor
		if fillColor == "" {
			fillColor = "#FF9800"
		}
	}
	if g.style.CriticalThreshold > 0 && ratio >= g.style.CriticalThreshold {
		fillColor = g.style.CriticalColor
		if fillColor == "" {
			fillColor = "#F44336"
		}
	}

	// Build the bar with sub-cell precision.
	emptyColor := g.style.EmptyColor
	if emptyColor == "" {
		emptyColor = "#333333"
	}
	bar := gaugeRenderBar(ratio, width, fillColor, emptyColor)

	var b strings.Builder

	// Prepend label if set.
	if g.style.Label != "" {
		labelW := g.style.LabelWidth
		if labelW <= 0 {
			labelW = len(g.style.Label) + 1
		}
		padded := gaugePadRight(g.style.Label, labelW)
		b.WriteString(padded)
	}

	b.WriteString(bar)

	// Append percent label.
	if g.style.ShowPercent {
		pct := ratio * 100
		b.WriteString(fmt.Sprintf(" %d%%", int(math.Round(pct))))
	}

	// Append value label.
	if g.style.ShowValue {
		b.WriteString(fmt.Sprintf(" %.1f/%.1f", value, maxValue))
	}

	return b.String()
}

// gaugeRenderBar builds the ANSI-colored bar string with sub-cell precision.
func gaugeRenderBar(ratio float64, width int, fillColor, emptyColor string) string {
	// Total sub-cell units available.
	totalUnits := width * 8
	filledUnits := int(math.Round(ratio * float64(totalUnits)))
	if filledUnits < 0 {
		filledUnits = 0
	}
	if filledUnits > totalUnits {
		filledUnits = totalUnits
	}

	fullCells := filledUnits / 8
	partialEighths := filledUnits % 8
	emptyCells := width - fullCells
	if partialEighths > 0 {
		emptyCells--
	}
	if emptyCells < 0 {
		emptyCells = 0
	}

	fgFill := gaugeColorFg(fillColor)
	bgEmpty := gaugeColorBg(emptyColor)
	fgEmpty := gaugeColorFg(emptyColor)
	reset := "\x1b[0m"

	var b strings.Builder

	// Full filled cells: filled-color foreground, empty-color background.
	if fullCells > 0 {
		b.WriteString(fgFill)
		b.WriteString(bgEmpty)
		b.WriteString(strings.Repeat(string(gaugeBlocks[8]), fullCells))
		b.WriteString(reset)
	}

	// Partial cell at the boundary.
	if partialEighths > 0 {
		b.WriteString(fgFill)
		b.WriteString(bgEmpty)
		b.WriteRune(gaugeBlocks[partialEighths])
		b.WriteString(reset)
	}

	// Empty cells.
	if emptyCells > 0 {
		b.WriteString(fgEmpty)
		b.WriteString(strings.Repeat(" ", emptyCells))
		b.WriteString(reset)
	}

	return b.String()
}

// gaugeColorFg returns an ANSI true-color foreground escape sequence from hex.
func gaugeColorFg(hex string) string {
	r, g, b, ok := gaugeParseHexColor(hex)
	if !ok {
		return ""
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
}

// gaugeColorBg returns an ANSI true-color background escape sequence from hex.
func gaugeColorBg(hex string) string {
	r, g, b, ok := gaugeParseHexColor(hex)
	if !ok {
		return ""
	}
	return fmt.Sprintf("\x1b[48;2;%d;%d;%dm", r, g, b)
}

// gaugeParseHexColor parses "#RRGGBB" or "RRGGBB" into r, g, b components.
func gaugeParseHexColor(hex string) (r, g, b uint8, ok bool) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	rv, err := strconv.ParseUint(hex[0:2], 16, 8)
	if err != nil {
		return 0, 0, 0, false
	}
	gv, err := strconv.ParseUint(hex[2:4], 16, 8)
	if err != nil {
		return 0, 0, 0, false
	}
	bv, err := strconv.ParseUint(hex[4:6], 16, 8)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(rv), uint8(gv), uint8(bv), true
}

// gaugePadRight pads s to the given width with spaces on the right.
func gaugePadRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
