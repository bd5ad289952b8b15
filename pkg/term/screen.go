// Package term implements the VT-subset terminal emulator described in
// spec.md §4.1: a styled cell grid with bounded scrollback, dirty-line
// tracking, and a scroll window that can straddle live and scrollback rows.
//
// It is deliberately hand-rolled rather than built on a general terminal
// emulation library (see spec.md §9 Design Notes) — the supported escape
// sequence subset is small and fully specified, and keeping the state
// machine in-process keeps the styled-cell model available to the renderer
// without an adapter layer.
package term

const (
	// DefaultScrollback is the default scrollback ring capacity in lines.
	DefaultScrollback = 10000
	tabWidth          = 8
)

// Screen is a columns x rows grid of styled cells with a cursor and a
// bounded scrollback ring. It is not safe for concurrent use; per §4.1 the
// owning tab serialises Feed/Display calls.
type Screen struct {
	cols, rows int

	grid [][]Cell

	cursorX, cursorY int
	cursorVisible    bool

	scrollback    [][]Cell
	scrollbackCap int
	scrollOffset  int

	dirty map[int]struct{}

	curStyle Style

	parser parserState
}

// NewScreen creates a screen of the given size with the given scrollback
// capacity (<=0 uses DefaultScrollback).
func NewScreen(cols, rows, scrollbackCap int) *Screen {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if scrollbackCap <= 0 {
		scrollbackCap = DefaultScrollback
	}
	s := &Screen{
		cols:          cols,
		rows:          rows,
		scrollbackCap: scrollbackCap,
		cursorVisible: true,
		dirty:         make(map[int]struct{}),
		curStyle:      DefaultStyle,
	}
	s.grid = make([][]Cell, rows)
	for i := range s.grid {
		s.grid[i] = newRow(cols)
	}
	return s
}

// Cols returns the screen width.
func (s *Screen) Cols() int { return s.cols }

// Rows returns the screen height.
func (s *Screen) Rows() int { return s.rows }

// CursorPos returns the cursor's position and visibility.
func (s *Screen) CursorPos() (x, y int, visible bool) {
	return s.cursorX, s.cursorY, s.cursorVisible
}

// ScrollbackLen returns the number of lines currently held in scrollback.
func (s *Screen) ScrollbackLen() int { return len(s.scrollback) }

// ScrollOffset returns the current scroll offset (0 = live tail).
func (s *Screen) ScrollOffset() int { return s.scrollOffset }

// markDirty marks a live-grid row index as dirty.
func (s *Screen) markDirty(row int) {
	if row < 0 || row >= s.rows {
		return
	}
	s.dirty[row] = struct{}{}
}

// GetDirty returns the set of dirty live-grid row indices, in ascending
// order. It does not clear the set; call ClearDirty for that.
func (s *Screen) GetDirty() []int {
	rows := make([]int, 0, len(s.dirty))
	for r := range s.dirty {
		rows = append(rows, r)
	}
	// Small N (<= rows), insertion sort keeps this dependency-free and cheap.
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j-1] > rows[j]; j-- {
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
	return rows
}

// ClearDirty empties the dirty-row set.
func (s *Screen) ClearDirty() {
	s.dirty = make(map[int]struct{})
}

// Reset clears the grid, homes the cursor, and empties scrollback.
func (s *Screen) Reset() {
	s.grid = make([][]Cell, s.rows)
	for i := range s.grid {
		s.grid[i] = newRow(s.cols)
	}
	s.scrollback = nil
	s.cursorX, s.cursorY = 0, 0
	s.cursorVisible = true
	s.scrollOffset = 0
	s.curStyle = DefaultStyle
	s.parser = parserState{}
	for r := 0; r < s.rows; r++ {
		s.markDirty(r)
	}
}

// Resize changes the grid dimensions, preserving content (shrinking may
// clip). All rows are marked dirty.
func (s *Screen) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	newGrid := make([][]Cell, rows)
	for i := range newGrid {
		newGrid[i] = newRow(cols)
	}
	copyRows := rows
	if s.rows < copyRows {
		copyRows = s.rows
	}
	copyCols := cols
	if s.cols < copyCols {
		copyCols = s.cols
	}
	for r := 0; r < copyRows; r++ {
		copy(newGrid[r][:copyCols], s.grid[r][:copyCols])
	}

	s.grid = newGrid
	s.cols, s.rows = cols, rows

	if s.cursorX >= cols {
		s.cursorX = cols - 1
	}
	if s.cursorY >= rows {
		s.cursorY = rows - 1
	}

	s.dirty = make(map[int]struct{})
	for r := 0; r < rows; r++ {
		s.markDirty(r)
	}
}

// ScrollUp moves the view n lines further back into scrollback.
func (s *Screen) ScrollUp(n int) {
	s.scrollOffset += n
	s.clampScrollOffset()
}

// ScrollDown moves the view n lines toward the live tail.
func (s *Screen) ScrollDown(n int) {
	s.scrollOffset -= n
	s.clampScrollOffset()
}

// ScrollToBottom snaps the view to the live tail (offset 0).
func (s *Screen) ScrollToBottom() { s.scrollOffset = 0 }

// ScrollToTop snaps the view as far back into scrollback as possible.
func (s *Screen) ScrollToTop() { s.scrollOffset = len(s.scrollback) }

func (s *Screen) clampScrollOffset() {
	if s.scrollOffset < 0 {
		s.scrollOffset = 0
	}
	if max := len(s.scrollback); s.scrollOffset > max {
		s.scrollOffset = max
	}
}

// windowRow returns the styled cells for displayed row i (0-indexed within
// the current [0, rows) window), straddling scrollback and the live grid
// according to scrollOffset.
func (s *Screen) windowRow(i int) []Cell {
	total := len(s.scrollback) + s.rows
	start := total - s.rows - s.scrollOffset
	if start < 0 {
		start = 0
	}
	idx := start + i
	if idx < len(s.scrollback) {
		row := s.scrollback[idx]
		if len(row) != s.cols {
			fitted := newRow(s.cols)
			copy(fitted, row)
			return fitted
		}
		return row
	}
	gi := idx - len(s.scrollback)
	if gi < 0 || gi >= len(s.grid) {
		return newRow(s.cols)
	}
	return s.grid[gi]
}

// Display returns exactly Rows() strings, each Cols() code points wide,
// representing the current scroll window.
func (s *Screen) Display() []string {
	out := make([]string, s.rows)
	for i := 0; i < s.rows; i++ {
		row := s.windowRow(i)
		runes := make([]rune, len(row))
		for j, c := range row {
			runes[j] = c.Ch
		}
		out[i] = string(runes)
	}
	return out
}

// StyledLine returns the styled cells for displayed row, in the same
// scroll window as Display.
func (s *Screen) StyledLine(row int) []Cell {
	if row < 0 || row >= s.rows {
		return nil
	}
	src := s.windowRow(row)
	out := make([]Cell, len(src))
	copy(out, src)
	return out
}
