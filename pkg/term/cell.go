package term

// Style holds the SGR rendering attributes of a cell.
type Style struct {
	FG            Color
	BG            Color
	Bold          bool
	Italic        bool
	Underline     bool
	Strikethrough bool
	Reverse       bool
	Blink         bool
}

// DefaultStyle is the style new cells and a freshly reset screen start with.
var DefaultStyle = Style{FG: DefaultColor, BG: DefaultColor}

// Cell is one grapheme plus its style, per spec §3. Grapheme clustering is
// out of scope (Non-goals: not a full xterm); each Cell holds one rune,
// which is sufficient for the ASCII/Latin-1-heavy installer output this
// screen is built to render.
type Cell struct {
	Ch    rune
	Style Style
}

// blankCell is the cell value an empty grid position holds.
var blankCell = Cell{Ch: ' ', Style: DefaultStyle}

func newRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = blankCell
	}
	return row
}
