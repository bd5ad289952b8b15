// Package inputrouter classifies keystrokes as either a UI navigation
// action or input bound for the focused tab's PTY, and encodes the latter
// into the byte sequence a terminal would send (spec.md §4.7).
//
// The normalised-key-string -> action lookup follows the teacher's
// AppModel focus/navigation methods (pkg/app/navigation.go): a flat
// dispatch table plus a membership test, generalized from "cycle focus
// between dashboard widgets" to "route a key to an app action or the
// focused PTY".
package inputrouter

import (
	"sort"
	"strings"
)

// Action tags a navigation action a bound key may trigger (spec.md §4.7).
type Action string

const (
	ActionNextTab      Action = "next_tab"
	ActionPrevTab      Action = "prev_tab"
	ActionQuit         Action = "quit"
	ActionHelp         Action = "help"
	ActionScrollUp     Action = "scroll_up"
	ActionScrollDown   Action = "scroll_down"
	ActionScrollTop    Action = "scroll_top"
	ActionScrollBottom Action = "scroll_bottom"
	ActionPauseResume  Action = "pause_resume"
	ActionRetryPhase   Action = "retry_phase"
	ActionSaveLogs     Action = "save_logs"
	ActionShowHelp     Action = "show_help"
)

// tabAction returns the synthetic action name for direct tab-by-number
// bindings (tab_1 .. tab_9).
func tabAction(n int) Action {
	return Action("tab_" + string(rune('0'+n)))
}

// Bindings is a normalised-key-string -> Action table, partitioned into
// the three TOML tables described in spec.md §6.
type Bindings struct {
	TabNavigation map[string]Action
	Terminal      map[string]Action
	App           map[string]Action
}

// DefaultBindings returns the built-in key bindings from spec.md §6.
func DefaultBindings() Bindings {
	b := Bindings{
		TabNavigation: map[string]Action{
			"ctrl+tab":       ActionNextTab,
			"ctrl+shift+tab": ActionPrevTab,
		},
		Terminal: map[string]Action{
			"shift+pageup":   ActionScrollUp,
			"shift+pagedown": ActionScrollDown,
			"shift+home":     ActionScrollTop,
			"shift+end":      ActionScrollBottom,
		},
		App: map[string]Action{
			"ctrl+q": ActionQuit,
			"f1":     ActionHelp,
			"ctrl+p": ActionPauseResume,
			"f8":     ActionPauseResume,
			"ctrl+r": ActionRetryPhase,
			"f9":     ActionRetryPhase,
			"ctrl+s": ActionSaveLogs,
			"f10":    ActionSaveLogs,
			"ctrl+h": ActionShowHelp,
		},
	}
	for n := 1; n <= 9; n++ {
		b.TabNavigation["alt+"+string(rune('0'+n))] = tabAction(n)
	}
	return b
}

// lookup merges the three tables into one normalised-key -> Action map.
// Later tables (App) win on key collision, matching the order the TOML
// file lists them (spec.md §6).
func (b Bindings) lookup() map[string]Action {
	out := make(map[string]Action, len(b.TabNavigation)+len(b.Terminal)+len(b.App))
	for k, v := range b.TabNavigation {
		out[k] = v
	}
	for k, v := range b.Terminal {
		out[k] = v
	}
	for k, v := range b.App {
		out[k] = v
	}
	return out
}

// navigationActions is the static set every normalised key is tested
// against (spec.md §9 Design Notes: "a single lookup plus a membership
// test").
var navigationActions = map[Action]bool{
	ActionNextTab: true, ActionPrevTab: true, ActionQuit: true, ActionHelp: true,
	ActionScrollUp: true, ActionScrollDown: true, ActionScrollTop: true, ActionScrollBottom: true,
	ActionPauseResume: true, ActionRetryPhase: true, ActionSaveLogs: true, ActionShowHelp: true,
}

func init() {
	for n := 1; n <= 9; n++ {
		navigationActions[tabAction(n)] = true
	}
}

// aliases folds alternate spellings onto the canonical base-key name used
// internally (spec.md §4.7 "alias-folding").
var aliases = map[string]string{
	"esc":      "escape",
	"return":   "enter",
	"pgup":     "pageup",
	"pgdn":     "pagedown",
	"pgdown":   "pagedown",
	"del":      "delete",
	"cmd":      "super",
	"command":  "super",
	"win":      "super",
	"option":   "alt",
}

// modifierOrder is the canonical ordering §4.7 mandates for a normalised
// key string's modifier prefix.
var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3, "super": 3}

// Normalize folds case, aliases, and modifier order onto a raw key
// description (e.g. from a UI toolkit's own key-string representation),
// producing the canonical form used as a Bindings lookup key.
func Normalize(raw string) string {
	parts := strings.Split(strings.ToLower(raw), "+")
	for i, p := range parts {
		if a, ok := aliases[p]; ok {
			parts[i] = a
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}

	base := parts[len(parts)-1]
	mods := append([]string(nil), parts[:len(parts)-1]...)
	sort.SliceStable(mods, func(i, j int) bool {
		return modifierOrder[mods[i]] < modifierOrder[mods[j]]
	})
	return strings.Join(append(mods, base), "+")
}

// Router classifies normalised keys against a Bindings table.
type Router struct {
	bindings Bindings
	table    map[string]Action
}

// New returns a Router for the given bindings.
func New(b Bindings) *Router {
	return &Router{bindings: b, table: b.lookup()}
}

// SetBindings replaces the active bindings (e.g. after a config reload).
func (r *Router) SetBindings(b Bindings) {
	r.bindings = b
	r.table = b.lookup()
}

// Route classifies a raw key description. If it is bound to a navigation
// action, Route returns that action and isNav=true and the key is never
// forwarded to the PTY. Otherwise it returns the byte sequence to write to
// the focused session's PTY and isNav=false (spec.md §8 property 9: a
// bound key never produces a PTY write; any other key produces exactly
// one).
func (r *Router) Route(rawKey string) (action Action, bytesOut []byte, isNav bool) {
	norm := Normalize(rawKey)
	if a, ok := r.table[norm]; ok && IsNavigationAction(a) {
		return a, nil, true
	}
	return "", EncodeKey(norm), false
}

// IsNavigationAction reports whether a is one of the fixed navigation
// actions (spec.md GLOSSARY).
func IsNavigationAction(a Action) bool {
	return navigationActions[a]
}
