package theme

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"testing"
)

var thTestHexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// --- Get / SetCurrent / Names ---

func TestGetDefault(t *testing.T) {
	th := Get("default")
	if th.Name != "default" {
		t.Errorf("Get(\"default\").Name = %q, want %q", th.Name, "default")
	}
	if th.Accent != "#7C3AED" {
		t.Errorf("Get(\"default\").Accent = %q, want %q", th.Accent, "#7C3AED")
	}
}

func TestGetGruvbox(t *testing.T) {
	th := Get("gruvbox")
	if th.Name != "gruvbox" {
		t.Errorf("Get(\"gruvbox\").Name = %q, want %q", th.Name, "gruvbox")
	}
	if th.Accent != "#fe8019" {
		t.Errorf("Get(\"gruvbox\").Accent = %q, want %q", th.Accent, "#fe8019")
	}
}

func TestGetUnknownFallsBackToDefault(t *testing.T) {
	th := Get("unknown-theme-xyz")
	def := Get("default")
	if th.Name != def.Name {
		t.Errorf("Get(\"unknown\") = %q, want %q (default)", th.Name, def.Name)
	}
	if th.Accent != def.Accent {
		t.Errorf("Get(\"unknown\").Accent = %q, want %q", th.Accent, def.Accent)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 6 {
		t.Fatalf("Names() returned %d themes, want 6", len(names))
	}

	expected := []string{"catppuccin", "default", "dracula", "gruvbox", "nord", "tokyo-night"}
	sort.Strings(expected)
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestSetCurrent(t *testing.T) {
	SetCurrent("gruvbox")
	if Current.Name != "gruvbox" {
		t.Errorf("after SetCurrent(\"gruvbox\"), Current.Name = %q", Current.Name)
	}
	if Current.Accent != "#fe8019" {
		t.Errorf("after SetCurrent(\"gruvbox\"), Current.Accent = %q", Current.Accent)
	}

	// Reset to default for other tests.
	SetCurrent("default")
}

// --- Built-in theme completeness ---

func TestAllThemesHaveRequiredFields(t *testing.T) {
	for _, name := range Names() {
		th := Get(name)
		t.Run(name, func(t *testing.T) {
			if th.Foreground == "" {
				t.Error("Foreground is empty")
			}
			if th.Accent == "" {
				t.Error("Accent is empty")
			}
			if th.StatusError == "" {
				t.Error("StatusError is empty")
			}
			if th.GaugeCrit == "" {
				t.Error("GaugeCrit is empty")
			}
		})
	}
}

func TestAllThemesHaveValidHexColors(t *testing.T) {
	for _, name := range Names() {
		th := Get(name)
		t.Run(name, func(t *testing.T) {
			colors := map[string]string{
				"Foreground":    th.Foreground,
				"Dim":           th.Dim,
				"Accent":        th.Accent,
				"StatusOK":      th.StatusOK,
				"StatusWarn":    th.StatusWarn,
				"StatusError":   th.StatusError,
				"StatusUnknown": th.StatusUnknown,
				"GaugeFilled":   th.GaugeFilled,
				"GaugeEmpty":    th.GaugeEmpty,
				"GaugeWarn":     th.GaugeWarn,
				"GaugeCrit":     th.GaugeCrit,
			}
			for field, value := range colors {
				if !thTestHexPattern.MatchString(value) {
					t.Errorf("%s = %q is not valid #RRGGBB", field, value)
				}
			}
		})
	}
}

// --- Register ---

func TestRegisterAddsTheme(t *testing.T) {
	custom := Theme{
		Name:          "register-test",
		Foreground:    "#eeeeee",
		Dim:           "#666666",
		Accent:        "#ff00ff",
		StatusOK:      "#00ff00",
		StatusWarn:    "#ffff00",
		StatusError:   "#ff0000",
		StatusUnknown: "#888888",
		GaugeFilled:   "#00ff00",
		GaugeEmpty:    "#333333",
		GaugeWarn:     "#ffff00",
		GaugeCrit:     "#ff0000",
	}
	if err := Register(custom); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	got := Get("register-test")
	if got.Accent != custom.Accent {
		t.Errorf("Get(\"register-test\").Accent = %q, want %q", got.Accent, custom.Accent)
	}
}

func TestRegisterRejectsIncompletePalette(t *testing.T) {
	incomplete := Theme{Name: "incomplete"}
	if err := Register(incomplete); err == nil {
		t.Error("Register() with empty fields should return an error")
	}
}

// --- 256-color fallback ---

func TestTo256ColorPureRed(t *testing.T) {
	// Pure red #ff0000 should map to 196 (cube: 5,0,0 -> 16 + 36*5 = 196).
	result := thTo256Color("#ff0000")
	if result != "196" {
		t.Errorf("thTo256Color(\"#ff0000\") = %q, want %q", result, "196")
	}
}

func TestTo256ColorPureGreen(t *testing.T) {
	// Pure green #00ff00 should map to 46 (cube: 0,5,0 -> 16 + 6*5 = 46).
	result := thTo256Color("#00ff00")
	if result != "46" {
		t.Errorf("thTo256Color(\"#00ff00\") = %q, want %q", result, "46")
	}
}

func TestTo256ColorGrayscale(t *testing.T) {
	// A mid-gray like #808080 should map to a grayscale index.
	result := thTo256Color("#808080")
	if result != "244" {
		t.Errorf("thTo256Color(\"#808080\") = %q, want %q", result, "244")
	}
}

func TestTo256ColorBlack(t *testing.T) {
	// #000000 should map to 16 (cube: 0,0,0 -> 16).
	result := thTo256Color("#000000")
	if result != "16" {
		t.Errorf("thTo256Color(\"#000000\") = %q, want %q", result, "16")
	}
}

func TestTo256ColorWhite(t *testing.T) {
	// #ffffff should map to 231 (cube: 5,5,5 -> 16 + 36*5 + 6*5 + 5 = 231).
	result := thTo256Color("#ffffff")
	if result != "231" {
		t.Errorf("thTo256Color(\"#ffffff\") = %q, want %q", result, "231")
	}
}

func TestNearestCubeIndexPrimaries(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    int
	}{
		{255, 0, 0, 196},     // pure red
		{0, 255, 0, 46},      // pure green
		{0, 0, 255, 21},      // pure blue
		{0, 0, 0, 16},        // black
		{255, 255, 255, 231}, // white
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("(%d,%d,%d)", tt.r, tt.g, tt.b), func(t *testing.T) {
			got := thNearestCubeIndex(tt.r, tt.g, tt.b)
			if got != tt.want {
				t.Errorf("thNearestCubeIndex(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestAdaptConvertsColors(t *testing.T) {
	th := Get("default")
	adapted := Adapt(th, 8) // 8-bit color depth means 256 colors

	// All fields should be numeric strings, not hex.
	if strings.HasPrefix(adapted.Accent, "#") {
		t.Errorf("Adapt with colorDepth=8 should convert Accent, got %q", adapted.Accent)
	}
	if strings.HasPrefix(adapted.StatusOK, "#") {
		t.Errorf("Adapt with colorDepth=8 should convert StatusOK, got %q", adapted.StatusOK)
	}
	if strings.HasPrefix(adapted.GaugeCrit, "#") {
		t.Errorf("Adapt with colorDepth=8 should convert GaugeCrit, got %q", adapted.GaugeCrit)
	}
}

func TestAdaptPreservesAt24Bit(t *testing.T) {
	th := Get("default")
	adapted := Adapt(th, 24)

	if adapted.Accent != th.Accent {
		t.Errorf("Adapt(24bit) changed Accent: %q -> %q", th.Accent, adapted.Accent)
	}
	if adapted.StatusError != th.StatusError {
		t.Errorf("Adapt(24bit) changed StatusError: %q -> %q", th.StatusError, adapted.StatusError)
	}
}

// --- TOML loading/saving ---

func TestLoadFromTOMLValid(t *testing.T) {
	data := []byte(`
name = "custom"

[base]
foreground = "#eeeeee"
dim = "#666666"
accent = "#ff0000"

[status]
ok = "#00ff00"
warn = "#ffff00"
error = "#ff0000"
unknown = "#888888"

[gauge]
filled = "#00ff00"
empty = "#333333"
warn = "#ffff00"
crit = "#ff0000"
`)

	th, err := LoadFromTOML(data)
	if err != nil {
		t.Fatalf("LoadFromTOML() error: %v", err)
	}
	if th.Name != "custom" {
		t.Errorf("Name = %q, want %q", th.Name, "custom")
	}
	if th.StatusOK != "#00ff00" {
		t.Errorf("StatusOK = %q, want %q", th.StatusOK, "#00ff00")
	}
}

func TestLoadFromTOMLMissingFieldsError(t *testing.T) {
	// Missing the [status] and [gauge] sections entirely.
	data := []byte(`
name = "incomplete"

[base]
foreground = "#eeeeee"
dim = "#666666"
accent = "#ff0000"
`)

	_, err := LoadFromTOML(data)
	if err == nil {
		t.Error("LoadFromTOML() should return error for missing fields")
	}
}

func TestLoadFromTOMLInvalidHexColor(t *testing.T) {
	data := []byte(`
name = "badhex"

[base]
foreground = "not-a-color"
dim = "#666666"
accent = "#ff0000"

[status]
ok = "#00ff00"
warn = "#ffff00"
error = "#ff0000"
unknown = "#888888"

[gauge]
filled = "#00ff00"
empty = "#333333"
warn = "#ffff00"
crit = "#ff0000"
`)

	_, err := LoadFromTOML(data)
	if err == nil {
		t.Error("LoadFromTOML() should return error for invalid hex color")
	}
	if err != nil && !strings.Contains(err.Error(), "invalid hex color") {
		t.Errorf("error should mention invalid hex color, got: %v", err)
	}
}

func TestSaveToTOMLRoundtrip(t *testing.T) {
	original := Get("gruvbox")

	data, err := SaveToTOML(original)
	if err != nil {
		t.Fatalf("SaveToTOML() error: %v", err)
	}

	loaded, err := LoadFromTOML(data)
	if err != nil {
		t.Fatalf("LoadFromTOML(roundtrip) error: %v", err)
	}

	if loaded.Name != original.Name {
		t.Errorf("roundtrip Name: %q -> %q", original.Name, loaded.Name)
	}
	if loaded.Accent != original.Accent {
		t.Errorf("roundtrip Accent: %q -> %q", original.Accent, loaded.Accent)
	}
	if loaded.StatusOK != original.StatusOK {
		t.Errorf("roundtrip StatusOK: %q -> %q", original.StatusOK, loaded.StatusOK)
	}
	if loaded.GaugeCrit != original.GaugeCrit {
		t.Errorf("roundtrip GaugeCrit: %q -> %q", original.GaugeCrit, loaded.GaugeCrit)
	}
}

func TestLoadFromTOMLThenRegister(t *testing.T) {
	data := []byte(`
name = "from-file"

[base]
foreground = "#eeeeee"
dim = "#666666"
accent = "#123456"

[status]
ok = "#00ff00"
warn = "#ffff00"
error = "#ff0000"
unknown = "#888888"

[gauge]
filled = "#00ff00"
empty = "#333333"
warn = "#ffff00"
crit = "#ff0000"
`)
	th, err := LoadFromTOML(data)
	if err != nil {
		t.Fatalf("LoadFromTOML() error: %v", err)
	}
	if err := Register(th); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if Get("from-file").Accent != "#123456" {
		t.Errorf("Get(\"from-file\").Accent = %q, want %q", Get("from-file").Accent, "#123456")
	}
}
