package term

// ColorKind distinguishes the four ways a terminal color can be expressed.
type ColorKind int

const (
	// ColorDefault means "the terminal's default foreground/background",
	// distinguishable from any concrete color (spec §3).
	ColorDefault ColorKind = iota
	ColorNamed
	ColorBright
	ColorPalette
	ColorRGB
)

// Color is a single cell's foreground or background color. Only the fields
// relevant to Kind are meaningful.
type Color struct {
	Kind  ColorKind
	Index uint8 // ColorNamed/ColorBright: 0-7. ColorPalette: 0-255.
	R, G, B uint8
}

// DefaultColor is the zero-value "use the terminal default" color.
var DefaultColor = Color{Kind: ColorDefault}

// Named returns a basic named color (0-7: black, red, green, yellow, blue,
// magenta, cyan, white).
func Named(index uint8) Color { return Color{Kind: ColorNamed, Index: index % 8} }

// Bright returns a bright-named color (0-7, same ordering as Named).
func Bright(index uint8) Color { return Color{Kind: ColorBright, Index: index % 8} }

// Palette256 returns a 256-color palette index color.
func Palette256(index uint8) Color { return Color{Kind: ColorPalette, Index: index} }

// RGB returns a 24-bit true color.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }
