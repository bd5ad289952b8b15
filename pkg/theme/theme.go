// Package theme holds the color palette pmrun's bubbletea dashboard reads
// when it paints a tab: the accent/dim text colors, the job-state status
// colors (running/done/failed/unknown), and the memory gauge's
// filled/empty/warn/crit colors (spec.md §[ADD] A4). It started as a
// straight copy of the teacher's generic dashboard-widget palette — border
// colors for focusable panes, chart colors for sparklines/timegraphs, a
// search-highlight color — none of which pmrun's tab/status-line renderer
// (internal/ui/render.go) ever reads, since pmrun has no focusable panes,
// charts, or search UI. The fields below are only the ones render.go
// actually asks for.
package theme

import (
	"sort"
	"strings"
	"sync"
)

// Theme is the color palette internal/ui/render.go draws the tab bar,
// status line, and memory gauge from.
type Theme struct {
	Name string

	// Base text colors.
	Foreground string // hex color, e.g. "#d4d4d4"
	Dim        string // unfocused tab labels
	Accent     string // focused tab background

	// Job-state status colors (orchestrator.JobState -> color).
	StatusOK      string // green - Done
	StatusWarn    string // yellow - Running/Waiting
	StatusError   string // red - Failed/Cancelled
	StatusUnknown string // gray - Pending/Skipped

	// Memory gauge colors (components.Gauge).
	GaugeFilled string
	GaugeEmpty  string
	GaugeWarn   string
	GaugeCrit   string
}

// Current holds the active theme (set via SetCurrent).
var Current Theme

var (
	mu       sync.RWMutex
	registry = map[string]Theme{}
)

func init() {
	thRegisterBuiltins()
	Current = thDefaultTheme()
}

// Get returns a named theme, falling back to Default if not found.
func Get(name string) Theme {
	mu.RLock()
	defer mu.RUnlock()
	if t, ok := registry[strings.ToLower(name)]; ok {
		return t
	}
	return registry["default"]
}

// Names returns all available theme names sorted alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCurrent sets the active theme by name.
func SetCurrent(name string) {
	Current = Get(name)
}

// Register validates t and adds it to the registry under its lowercase
// name, for a run-config-supplied theme loaded via LoadFromTOML (spec.md
// §[ADD] A2). Returns an error instead of registering an incomplete
// palette.
func Register(t Theme) error {
	if err := thValidateTheme(t); err != nil {
		return err
	}
	thRegister(t)
	return nil
}

// thRegister adds a theme to the registry under its lowercase name.
func thRegister(t Theme) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(t.Name)] = t
}
