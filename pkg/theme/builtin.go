package theme

// thRegisterBuiltins registers all built-in themes in the registry.
func thRegisterBuiltins() {
	for _, t := range []Theme{
		thDefaultTheme(),
		thGruvboxTheme(),
		thNordTheme(),
		thCatppuccinTheme(),
		thDraculaTheme(),
		thTokyoNightTheme(),
	} {
		thRegister(t)
	}
}

// thDefaultTheme returns the dark neutral theme with purple accent.
func thDefaultTheme() Theme {
	return Theme{
		Name:       "default",
		Foreground: "#d4d4d4",
		Dim:        "#6b6b6b",
		Accent:     "#7C3AED",

		StatusOK:      "#4ec970",
		StatusWarn:    "#e5c07b",
		StatusError:   "#e06c75",
		StatusUnknown: "#6b6b6b",

		GaugeFilled: "#4ec970",
		GaugeEmpty:  "#3e3e3e",
		GaugeWarn:   "#e5c07b",
		GaugeCrit:   "#e06c75",
	}
}

// thGruvboxTheme returns the warm retro Gruvbox theme.
func thGruvboxTheme() Theme {
	return Theme{
		Name:       "gruvbox",
		Foreground: "#ebdbb2",
		Dim:        "#928374",
		Accent:     "#fe8019",

		StatusOK:      "#b8bb26",
		StatusWarn:    "#fabd2f",
		StatusError:   "#fb4934",
		StatusUnknown: "#928374",

		GaugeFilled: "#b8bb26",
		GaugeEmpty:  "#504945",
		GaugeWarn:   "#fabd2f",
		GaugeCrit:   "#fb4934",
	}
}

// thNordTheme returns the arctic blue Nord theme.
func thNordTheme() Theme {
	return Theme{
		Name:       "nord",
		Foreground: "#eceff4",
		Dim:        "#4c566a",
		Accent:     "#88c0d0",

		StatusOK:      "#a3be8c",
		StatusWarn:    "#ebcb8b",
		StatusError:   "#bf616a",
		StatusUnknown: "#4c566a",

		GaugeFilled: "#a3be8c",
		GaugeEmpty:  "#3b4252",
		GaugeWarn:   "#ebcb8b",
		GaugeCrit:   "#bf616a",
	}
}

// thCatppuccinTheme returns the pastel Catppuccin Mocha theme.
func thCatppuccinTheme() Theme {
	return Theme{
		Name:       "catppuccin",
		Foreground: "#cdd6f4",
		Dim:        "#6c7086",
		Accent:     "#cba6f7",

		StatusOK:      "#a6e3a1",
		StatusWarn:    "#f9e2af",
		StatusError:   "#f38ba8",
		StatusUnknown: "#6c7086",

		GaugeFilled: "#a6e3a1",
		GaugeEmpty:  "#313244",
		GaugeWarn:   "#f9e2af",
		GaugeCrit:   "#f38ba8",
	}
}

// thDraculaTheme returns the Dracula theme.
func thDraculaTheme() Theme {
	return Theme{
		Name:       "dracula",
		Foreground: "#f8f8f2",
		Dim:        "#6272a4",
		Accent:     "#bd93f9",

		StatusOK:      "#50fa7b",
		StatusWarn:    "#f1fa8c",
		StatusError:   "#ff5555",
		StatusUnknown: "#6272a4",

		GaugeFilled: "#50fa7b",
		GaugeEmpty:  "#44475a",
		GaugeWarn:   "#f1fa8c",
		GaugeCrit:   "#ff5555",
	}
}

// thTokyoNightTheme returns the Tokyo Night theme.
func thTokyoNightTheme() Theme {
	return Theme{
		Name:       "tokyo-night",
		Foreground: "#c0caf5",
		Dim:        "#565f89",
		Accent:     "#7aa2f7",

		StatusOK:      "#9ece6a",
		StatusWarn:    "#e0af68",
		StatusError:   "#f7768e",
		StatusUnknown: "#565f89",

		GaugeFilled: "#9ece6a",
		GaugeEmpty:  "#292e42",
		GaugeWarn:   "#e0af68",
		GaugeCrit:   "#f7768e",
	}
}
