package term

import "unicode/utf8"

type parserMode int

const (
	modeGround parserMode = iota
	modeEscape
	modeCSI
	modeOSC
)

// parserState is the VT state machine's mutable state, kept across Feed
// calls so a control sequence may be split across two writes.
type parserState struct {
	mode       parserMode
	csiParams  []int
	csiHasCur  bool
	csiCur     int
	oscSawEsc  bool // saw ESC while in modeOSC, waiting for '\' (ST terminator)
}

// Feed parses bytes containing text and ANSI/VT escape sequences and
// applies them to the screen. Malformed or unrecognised sequences are
// consumed without altering state; invalid UTF-8 is replaced with U+FFFD.
func (s *Screen) Feed(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]

		switch s.parser.mode {
		case modeGround:
			if b == 0x1b {
				s.parser.mode = modeEscape
				i++
				continue
			}
			if b < 0x20 {
				s.handleControl(b)
				i++
				continue
			}
			if b < 0x80 {
				s.putChar(rune(b))
				i++
				continue
			}
			r, size := utf8.DecodeRune(data[i:])
			if r == utf8.RuneError && size <= 1 {
				s.putChar(utf8.RuneError)
				i++
				continue
			}
			s.putChar(r)
			i += size

		case modeEscape:
			switch b {
			case '[':
				s.parser.mode = modeCSI
				s.parser.csiParams = nil
				s.parser.csiCur = 0
				s.parser.csiHasCur = false
			case ']':
				s.parser.mode = modeOSC
				s.parser.oscSawEsc = false
			default:
				// Unknown 2-byte escape: consumed without altering state.
				s.parser.mode = modeGround
			}
			i++

		case modeCSI:
			s.feedCSIByte(b)
			i++

		case modeOSC:
			s.feedOSCByte(b)
			i++
		}
	}
}

func (s *Screen) feedCSIByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		s.parser.csiCur = s.parser.csiCur*10 + int(b-'0')
		s.parser.csiHasCur = true
	case b == ';':
		s.parser.csiParams = append(s.parser.csiParams, s.parser.csiCur)
		s.parser.csiCur = 0
		s.parser.csiHasCur = false
	case b == '?' || b == '>' || b == '=':
		// Private-mode / intermediate marker: consumed, not tracked.
	case b >= 0x40 && b <= 0x7e:
		if s.parser.csiHasCur || len(s.parser.csiParams) > 0 {
			s.parser.csiParams = append(s.parser.csiParams, s.parser.csiCur)
		}
		s.dispatchCSI(rune(b), s.parser.csiParams)
		s.parser.mode = modeGround
		s.parser.csiParams = nil
		s.parser.csiCur = 0
		s.parser.csiHasCur = false
	default:
		// Intermediate byte (0x20-0x2F): ignored.
	}
}

func (s *Screen) feedOSCByte(b byte) {
	switch {
	case b == 0x07: // BEL terminator
		s.parser.mode = modeGround
	case b == 0x1b:
		s.parser.oscSawEsc = true
	case b == '\\' && s.parser.oscSawEsc: // ST terminator (ESC \)
		s.parser.mode = modeGround
		s.parser.oscSawEsc = false
	default:
		s.parser.oscSawEsc = false
	}
}

func (s *Screen) handleControl(b byte) {
	switch b {
	case '\r':
		s.cursorX = 0
	case '\n':
		s.lineFeed()
	case '\b':
		if s.cursorX > 0 {
			s.cursorX--
		}
	case '\t':
		next := ((s.cursorX / tabWidth) + 1) * tabWidth
		if next >= s.cols {
			next = s.cols - 1
		}
		s.cursorX = next
	case 0x07, 0x0e, 0x0f:
		// BEL, SO, SI: ignored.
	}
}

func (s *Screen) putChar(r rune) {
	if s.cursorY < 0 || s.cursorY >= s.rows || s.cursorX < 0 || s.cursorX >= s.cols {
		return
	}
	s.grid[s.cursorY][s.cursorX] = Cell{Ch: r, Style: s.curStyle}
	s.markDirty(s.cursorY)
	s.cursorX++
	if s.cursorX >= s.cols {
		s.cursorX = 0
		s.lineFeed()
	}
}

// lineFeed advances the cursor to the next row, scrolling the grid (and
// pushing the evicted top row into scrollback) when already on the bottom
// row, per spec §4.1.
func (s *Screen) lineFeed() {
	if s.cursorY < s.rows-1 {
		s.cursorY++
		return
	}
	evicted := make([]Cell, s.cols)
	copy(evicted, s.grid[0])
	s.scrollback = append(s.scrollback, evicted)
	if len(s.scrollback) > s.scrollbackCap {
		s.scrollback = s.scrollback[len(s.scrollback)-s.scrollbackCap:]
	}

	copy(s.grid, s.grid[1:])
	s.grid[s.rows-1] = newRow(s.cols)

	for r := 0; r < s.rows; r++ {
		s.markDirty(r)
	}
}

func param(params []int, idx, def int) int {
	if idx >= len(params) {
		return def
	}
	if params[idx] == 0 && def != 0 {
		return def
	}
	return params[idx]
}

func (s *Screen) dispatchCSI(final rune, params []int) {
	switch final {
	case 'H', 'f':
		row := param(params, 0, 1)
		col := param(params, 1, 1)
		s.setCursor(col-1, row-1)
	case 'A':
		s.setCursor(s.cursorX, s.cursorY-param(params, 0, 1))
	case 'B':
		s.setCursor(s.cursorX, s.cursorY+param(params, 0, 1))
	case 'C':
		s.setCursor(s.cursorX+param(params, 0, 1), s.cursorY)
	case 'D':
		s.setCursor(s.cursorX-param(params, 0, 1), s.cursorY)
	case 'K':
		s.eraseInLine(firstOrZero(params))
	case 'J':
		s.eraseInDisplay(firstOrZero(params))
	case 'm':
		s.applySGR(params)
	default:
		// Unrecognised final byte: sequence consumed, no state change.
	}
}

func firstOrZero(params []int) int {
	if len(params) == 0 {
		return 0
	}
	return params[0]
}

func (s *Screen) setCursor(x, y int) {
	if x < 0 {
		x = 0
	}
	if x >= s.cols {
		x = s.cols - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= s.rows {
		y = s.rows - 1
	}
	s.cursorX, s.cursorY = x, y
}

func (s *Screen) eraseInLine(mode int) {
	row := s.grid[s.cursorY]
	switch mode {
	case 0:
		for x := s.cursorX; x < s.cols; x++ {
			row[x] = blankCell
		}
	case 1:
		for x := 0; x <= s.cursorX && x < s.cols; x++ {
			row[x] = blankCell
		}
	case 2:
		for x := 0; x < s.cols; x++ {
			row[x] = blankCell
		}
	}
	s.markDirty(s.cursorY)
}

func (s *Screen) eraseInDisplay(mode int) {
	switch mode {
	case 0:
		s.eraseInLine(0)
		for y := s.cursorY + 1; y < s.rows; y++ {
			s.grid[y] = newRow(s.cols)
			s.markDirty(y)
		}
	case 1:
		s.eraseInLine(1)
		for y := 0; y < s.cursorY; y++ {
			s.grid[y] = newRow(s.cols)
			s.markDirty(y)
		}
	case 2:
		for y := 0; y < s.rows; y++ {
			s.grid[y] = newRow(s.cols)
			s.markDirty(y)
		}
	}
}

func (s *Screen) applySGR(params []int) {
	if len(params) == 0 {
		s.curStyle = DefaultStyle
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s.curStyle = DefaultStyle
		case p == 1:
			s.curStyle.Bold = true
		case p == 3:
			s.curStyle.Italic = true
		case p == 4:
			s.curStyle.Underline = true
		case p == 5:
			s.curStyle.Blink = true
		case p == 7:
			s.curStyle.Reverse = true
		case p == 9:
			s.curStyle.Strikethrough = true
		case p == 22:
			s.curStyle.Bold = false
		case p == 23:
			s.curStyle.Italic = false
		case p == 24:
			s.curStyle.Underline = false
		case p == 25:
			s.curStyle.Blink = false
		case p == 27:
			s.curStyle.Reverse = false
		case p == 29:
			s.curStyle.Strikethrough = false
		case p >= 30 && p <= 37:
			s.curStyle.FG = Named(uint8(p - 30))
		case p == 39:
			s.curStyle.FG = DefaultColor
		case p >= 40 && p <= 47:
			s.curStyle.BG = Named(uint8(p - 40))
		case p == 49:
			s.curStyle.BG = DefaultColor
		case p >= 90 && p <= 97:
			s.curStyle.FG = Bright(uint8(p - 90))
		case p >= 100 && p <= 107:
			s.curStyle.BG = Bright(uint8(p - 100))
		case p == 38:
			n, adv := s.readExtendedColor(params, i+1)
			if adv == 0 {
				// Truncated/malformed extended-color sequence: stop here
				// rather than reinterpreting the tail as standalone codes.
				return
			}
			s.curStyle.FG = n
			i += adv
		case p == 48:
			n, adv := s.readExtendedColor(params, i+1)
			if adv == 0 {
				return
			}
			s.curStyle.BG = n
			i += adv
		default:
			// Unrecognised SGR parameter: ignored.
		}
	}
}

// readExtendedColor parses the "5;n" (256-color) or "2;r;g;b" (true color)
// tail of an extended SGR color sequence starting at params[idx]. It
// returns the decoded color and how many extra params were consumed (0 if
// the sequence was malformed, in which case no state changes).
func (s *Screen) readExtendedColor(params []int, idx int) (Color, int) {
	if idx >= len(params) {
		return Color{}, 0
	}
	switch params[idx] {
	case 5:
		if idx+1 >= len(params) {
			return Color{}, 0
		}
		return Palette256(uint8(params[idx+1])), 2
	case 2:
		if idx+3 >= len(params) {
			return Color{}, 0
		}
		return RGB(uint8(params[idx+1]), uint8(params[idx+2]), uint8(params[idx+3])), 4
	default:
		return Color{}, 0
	}
}
