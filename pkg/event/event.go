// Package event defines the tagged stream-event variants produced by phase
// runners and consumed by the metrics collector and the terminal UI. Every
// event carries the owning plugin's name and a UTC timestamp so downstream
// consumers can route it into the correct tab without additional context.
package event

import (
	"encoding/json"
	"time"
)

// Phase identifies one of the three stages a plugin is driven through.
type Phase int

const (
	PhaseCheck Phase = iota
	PhaseDownload
	PhaseExecute
)

var phaseNames = [...]string{
	PhaseCheck:    "check",
	PhaseDownload: "download",
	PhaseExecute:  "execute",
}

// displayNames holds the fixed user-facing label for each phase (spec §3).
var displayNames = [...]string{
	PhaseCheck:    "Update",
	PhaseDownload: "Download",
	PhaseExecute:  "Upgrade",
}

// String returns the lowercase wire name of the phase ("check", "download",
// "execute").
func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Display returns the fixed UI label for the phase (Update/Download/Upgrade).
func (p Phase) Display() string {
	if int(p) >= 0 && int(p) < len(displayNames) {
		return displayNames[p]
	}
	return "Unknown"
}

// ParsePhase maps a progress-sentinel phase string to a Phase. Per §6,
// anything unrecognised is treated as Execute.
func ParsePhase(s string) Phase {
	switch s {
	case "check":
		return PhaseCheck
	case "download":
		return PhaseDownload
	case "execute":
		return PhaseExecute
	default:
		return PhaseExecute
	}
}

// MarshalJSON renders the phase as its wire name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Stream identifies which child file descriptor an Output line came from.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
)

func (s Stream) String() string {
	if s == StreamStderr {
		return "stderr"
	}
	return "stdout"
}

func (s Stream) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Event is the sum type produced by a phase runner. Exactly one of the
// Kind-specific fields is meaningful, selected by Kind. Kind is exported as
// a string for stable, human-readable serialisation; callers that need
// exhaustive dispatch should switch on Kind.
type Event struct {
	Kind      Kind      `json:"kind"`
	Plugin    string    `json:"plugin"`
	Timestamp time.Time `json:"timestamp"`

	Output     *OutputPayload     `json:"output,omitempty"`
	Progress   *ProgressPayload   `json:"progress,omitempty"`
	PhaseStart *PhaseStartPayload `json:"phase_start,omitempty"`
	PhaseEnd   *PhaseEndPayload   `json:"phase_end,omitempty"`
	Completion *CompletionPayload `json:"completion,omitempty"`
}

// Kind tags which payload field of Event is populated.
type Kind string

const (
	KindOutput     Kind = "output"
	KindProgress   Kind = "progress"
	KindPhaseStart Kind = "phase_start"
	KindPhaseEnd   Kind = "phase_end"
	KindCompletion Kind = "completion"
)

// OutputPayload carries one line of child output.
type OutputPayload struct {
	Line   string `json:"line"`
	Stream Stream `json:"stream"`
}

// ProgressPayload carries a parsed progress-sentinel update. All fields
// except Phase are optional; a nil pointer means "not reported this update".
type ProgressPayload struct {
	Phase           Phase   `json:"phase"`
	Percent         *float64 `json:"percent,omitempty"`
	Message         string  `json:"message,omitempty"`
	BytesDownloaded *int64  `json:"bytes_downloaded,omitempty"`
	BytesTotal      *int64  `json:"bytes_total,omitempty"`
	ItemsDone       *int64  `json:"items_done,omitempty"`
	ItemsTotal      *int64  `json:"items_total,omitempty"`
}

// PhaseStartPayload announces that a phase has begun.
type PhaseStartPayload struct {
	Phase Phase `json:"phase"`
}

// PhaseEndPayload announces that a phase has finished.
type PhaseEndPayload struct {
	Phase   Phase  `json:"phase"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CompletionPayload announces the terminal outcome of a job.
type CompletionPayload struct {
	Success         bool   `json:"success"`
	ExitCode        int    `json:"exit_code"`
	PackagesUpdated int64  `json:"packages_updated"`
	Error           string `json:"error,omitempty"`
}

// NewOutput builds an Output event for the given plugin.
func NewOutput(plugin, line string, stream Stream, ts time.Time) Event {
	return Event{Kind: KindOutput, Plugin: plugin, Timestamp: ts, Output: &OutputPayload{Line: line, Stream: stream}}
}

// NewProgress builds a Progress event for the given plugin.
func NewProgress(plugin string, p ProgressPayload, ts time.Time) Event {
	return Event{Kind: KindProgress, Plugin: plugin, Timestamp: ts, Progress: &p}
}

// NewPhaseStart builds a PhaseStart event for the given plugin.
func NewPhaseStart(plugin string, phase Phase, ts time.Time) Event {
	return Event{Kind: KindPhaseStart, Plugin: plugin, Timestamp: ts, PhaseStart: &PhaseStartPayload{Phase: phase}}
}

// NewPhaseEnd builds a PhaseEnd event for the given plugin.
func NewPhaseEnd(plugin string, phase Phase, success bool, errMsg string, ts time.Time) Event {
	return Event{Kind: KindPhaseEnd, Plugin: plugin, Timestamp: ts, PhaseEnd: &PhaseEndPayload{Phase: phase, Success: success, Error: errMsg}}
}

// NewCompletion builds a Completion event for the given plugin.
func NewCompletion(plugin string, success bool, exitCode int, packagesUpdated int64, errMsg string, ts time.Time) Event {
	return Event{Kind: KindCompletion, Plugin: plugin, Timestamp: ts, Completion: &CompletionPayload{
		Success: success, ExitCode: exitCode, PackagesUpdated: packagesUpdated, Error: errMsg,
	}}
}

// MarshalStable serialises the event to JSON, omitting null/zero optional
// fields, for the persisted/log path required by §6. encoding/json's
// omitempty already gives a stable, dependency-free shape here; see
// DESIGN.md for why no third-party codec is used.
func MarshalStable(e Event) ([]byte, error) {
	return json.Marshal(e)
}
