package theme

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// thTOMLTheme is the TOML-serializable representation of a Theme, used to
// load a custom palette from a run-config-supplied theme file (config.RunConfig.ThemeFile).
type thTOMLTheme struct {
	Name   string       `toml:"name"`
	Base   thTOMLBase   `toml:"base"`
	Status thTOMLStatus `toml:"status"`
	Gauge  thTOMLGauge  `toml:"gauge"`
}

type thTOMLBase struct {
	Foreground string `toml:"foreground"`
	Dim        string `toml:"dim"`
	Accent     string `toml:"accent"`
}

type thTOMLStatus struct {
	OK      string `toml:"ok"`
	Warn    string `toml:"warn"`
	Error   string `toml:"error"`
	Unknown string `toml:"unknown"`
}

type thTOMLGauge struct {
	Filled string `toml:"filled"`
	Empty  string `toml:"empty"`
	Warn   string `toml:"warn"`
	Crit   string `toml:"crit"`
}

var thHexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// LoadFromTOML parses a TOML theme definition from raw bytes, for a
// user-supplied theme file referenced by config.RunConfig.ThemeFile.
func LoadFromTOML(data []byte) (Theme, error) {
	var tt thTOMLTheme
	if err := toml.Unmarshal(data, &tt); err != nil {
		return Theme{}, fmt.Errorf("theme: parse TOML: %w", err)
	}

	t := Theme{
		Name:       tt.Name,
		Foreground: tt.Base.Foreground,
		Dim:        tt.Base.Dim,
		Accent:     tt.Base.Accent,

		StatusOK:      tt.Status.OK,
		StatusWarn:    tt.Status.Warn,
		StatusError:   tt.Status.Error,
		StatusUnknown: tt.Status.Unknown,

		GaugeFilled: tt.Gauge.Filled,
		GaugeEmpty:  tt.Gauge.Empty,
		GaugeWarn:   tt.Gauge.Warn,
		GaugeCrit:   tt.Gauge.Crit,
	}

	if err := thValidateTheme(t); err != nil {
		return Theme{}, err
	}

	return t, nil
}

// SaveToTOML serializes a theme to TOML bytes in the layout LoadFromTOML
// reads.
func SaveToTOML(t Theme) ([]byte, error) {
	tt := thTOMLTheme{
		Name: t.Name,
		Base: thTOMLBase{
			Foreground: t.Foreground,
			Dim:        t.Dim,
			Accent:     t.Accent,
		},
		Status: thTOMLStatus{
			OK:      t.StatusOK,
			Warn:    t.StatusWarn,
			Error:   t.StatusError,
			Unknown: t.StatusUnknown,
		},
		Gauge: thTOMLGauge{
			Filled: t.GaugeFilled,
			Empty:  t.GaugeEmpty,
			Warn:   t.GaugeWarn,
			Crit:   t.GaugeCrit,
		},
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(tt); err != nil {
		return nil, fmt.Errorf("theme: encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// thValidateTheme checks that all required color fields are present and valid hex.
func thValidateTheme(t Theme) error {
	fields := map[string]string{
		"name":           t.Name,
		"foreground":     t.Foreground,
		"dim":            t.Dim,
		"accent":         t.Accent,
		"status_ok":      t.StatusOK,
		"status_warn":    t.StatusWarn,
		"status_error":   t.StatusError,
		"status_unknown": t.StatusUnknown,
		"gauge_filled":   t.GaugeFilled,
		"gauge_empty":    t.GaugeEmpty,
		"gauge_warn":     t.GaugeWarn,
		"gauge_crit":     t.GaugeCrit,
	}

	for field, value := range fields {
		if value == "" {
			return fmt.Errorf("theme: missing required field %q", field)
		}
	}

	// Validate hex colors (all fields except "name").
	colorFields := map[string]string{
		"foreground":     t.Foreground,
		"dim":            t.Dim,
		"accent":         t.Accent,
		"status_ok":      t.StatusOK,
		"status_warn":    t.StatusWarn,
		"status_error":   t.StatusError,
		"status_unknown": t.StatusUnknown,
		"gauge_filled":   t.GaugeFilled,
		"gauge_empty":    t.GaugeEmpty,
		"gauge_warn":     t.GaugeWarn,
		"gauge_crit":     t.GaugeCrit,
	}

	for field, value := range colorFields {
		if !thHexColorRegex.MatchString(value) {
			return fmt.Errorf("theme: invalid hex color %q for field %q (expected #RRGGBB)", value, field)
		}
	}

	return nil
}
