package inputrouter

import "strings"

// csi builds a CSI escape sequence: ESC [ params final.
func csi(params, final string) []byte {
	return []byte("\x1b[" + params + final)
}

// fTildeCodes maps F5-F12 to their final CSI tilde code (F1-F4 instead use
// SS3 sequences, handled separately) per spec.md §4.7.
var fTildeCodes = map[string]string{
	"f5": "15", "f6": "17", "f7": "18", "f8": "19",
	"f9": "20", "f10": "21", "f11": "23", "f12": "24",
}

var ss3Codes = map[string]byte{
	"f1": 'P', "f2": 'Q', "f3": 'R', "f4": 'S',
}

var arrowFinal = map[string]byte{
	"up": 'A', "down": 'B', "right": 'C', "left": 'D',
}

// shiftModParam is the CSI modifier parameter spec.md §4.7 uses for
// Shift+<arrow> and analogues: "1;2<final>".
const shiftModParam = "1;2"

// EncodeKey translates a Normalize-d key string into the byte sequence a
// real terminal would emit for it (spec.md §4.7). norm's base key and
// modifiers have already been through Normalize.
func EncodeKey(norm string) []byte {
	parts := strings.Split(norm, "+")
	base := parts[len(parts)-1]
	mods := parts[:len(parts)-1]

	hasCtrl, hasAlt, hasShift := false, false, false
	for _, m := range mods {
		switch m {
		case "ctrl":
			hasCtrl = true
		case "alt":
			hasAlt = true
		case "shift":
			hasShift = true
		}
	}

	var seq []byte

	switch {
	case base == "enter":
		seq = []byte{'\r'}
	case base == "tab":
		seq = []byte{'\t'}
	case base == "escape":
		seq = []byte{0x1b}
	case base == "backspace":
		seq = []byte{0x7f}
	case base == "delete":
		seq = csi("3", "~")
	case base == "home":
		seq = csi("", "H")
	case base == "end":
		seq = csi("", "F")
	case base == "pageup":
		seq = csi("5", "~")
	case base == "pagedown":
		seq = csi("6", "~")
	case arrowFinal[base] != 0:
		final := arrowFinal[base]
		if hasShift {
			seq = csi(shiftModParam, string(final))
		} else {
			seq = csi("", string(final))
		}
	case ss3Codes[base] != 0 && !hasShift:
		seq = []byte{0x1b, 'O', ss3Codes[base]}
	case fTildeCodes[base] != "" || (ss3Codes[base] != 0 && hasShift):
		code, ok := fTildeCodes[base]
		if !ok {
			// F1-F4 with Shift fall back to the tilde encoding with a
			// modifier parameter; there is no SS3 equivalent for that.
			switch base {
			case "f1":
				code = "11"
			case "f2":
				code = "12"
			case "f3":
				code = "13"
			case "f4":
				code = "14"
			}
		}
		if hasShift {
			seq = csi(code+";2", "~")
		} else {
			seq = csi(code, "~")
		}
	case hasCtrl && len(base) == 1 && base[0] >= 'a' && base[0] <= 'z':
		seq = []byte{base[0] - 'a' + 1}
	default:
		seq = []byte(base)
	}

	if hasAlt {
		return append([]byte{0x1b}, seq...)
	}
	return seq
}

// WrapBracketedPaste wraps text in the bracketed-paste escape sequences
// (spec.md §4.7) for a paste-mode write to a PTY.
func WrapBracketedPaste(text string) []byte {
	out := make([]byte, 0, len(text)+12)
	out = append(out, "\x1b[200~"...)
	out = append(out, text...)
	out = append(out, "\x1b[201~"...)
	return out
}
