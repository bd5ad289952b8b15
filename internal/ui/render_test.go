package ui

import (
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/pmrun/pkg/term"
)

func TestLipglossColorDefaultHasNoColor(t *testing.T) {
	if _, ok := lipglossColor(term.DefaultColor); ok {
		t.Error("ColorDefault should not produce an explicit lipgloss color")
	}
}

func TestLipglossColorRGB(t *testing.T) {
	c, ok := lipglossColor(term.RGB(0x10, 0x20, 0x30))
	if !ok {
		t.Fatal("expected an explicit color for RGB")
	}
	if string(c) != "#102030" {
		t.Errorf("color = %q, want #102030", c)
	}
}

func TestRenderStyledLineGroupsRunsAndKeepsText(t *testing.T) {
	cells := []term.Cell{
		{Ch: 'h', Style: term.DefaultStyle},
		{Ch: 'i', Style: term.DefaultStyle},
		{Ch: '!', Style: term.Style{FG: term.RGB(255, 0, 0)}},
	}
	out := stripANSI(renderStyledLine(cells))
	if out != "hi!" {
		t.Errorf("rendered text = %q, want %q", out, "hi!")
	}
}

func TestStripANSIRemovesSGRSequences(t *testing.T) {
	in := "\x1b[1;31mred\x1b[0m plain"
	if got := stripANSI(in); got != "red plain" {
		t.Errorf("stripANSI = %q, want %q", got, "red plain")
	}
}

func TestRenderTabBarEmptyJobsRendersEmptyBar(t *testing.T) {
	// With no jobs, renderTabBar has nothing to draw.
	bar := renderTabBar(nil, 0, 80)
	if bar != "" {
		t.Errorf("empty job list should render an empty bar, got %q", bar)
	}
}

func TestRGBToANSI256StaysInCubeRange(t *testing.T) {
	idx := rgbToANSI256(0x10, 0x20, 0x30)
	if idx < 16 || idx > 231 {
		t.Errorf("rgbToANSI256 = %d, want a value in [16, 231]", idx)
	}
}

func TestHelpOverlayMentionsQuit(t *testing.T) {
	if !strings.Contains(helpOverlay(), "quit") {
		t.Error("help overlay should document the quit binding")
	}
}
