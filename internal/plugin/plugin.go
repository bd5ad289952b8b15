// Package plugin describes the package-manager plugins the orchestrator
// drives, and carries a small built-in set of demo plugins used by the CLI
// and by tests in place of real apt/snap/conda integrations (out of scope
// per spec.md's Non-goals). The registry shape follows
// pkg/collectors.Registry's sync.RWMutex-guarded map-of-names.
package plugin

import (
	"fmt"
	"sync"
	"time"
)

// PhaseSpec describes how to run one phase of a plugin: the command to
// execute under a pty, and the mutex names it must hold for the duration.
type PhaseSpec struct {
	// Command is argv; Command[0] is resolved via PATH.
	Command []string
	// MutexNames are acquired (sorted, to avoid deadlock) before the phase
	// starts and released when it ends.
	MutexNames []string
	// Timeout bounds how long the phase may run; zero means no timeout.
	Timeout time.Duration
}

// PluginDescriptor is the static definition of one package-manager plugin:
// its name, the DAG edges it depends on, and its three phase specs.
type PluginDescriptor struct {
	Name         string
	DependsOn    []string
	Check        PhaseSpec
	Download     PhaseSpec
	Execute      PhaseSpec
	StallAfter   time.Duration // §ADD: how long with no output before a phase is considered stalled
	MaxRetries   int           // §ADD: retry cap for a failed phase, 0 uses the orchestrator default

	// SupportsSeparateDownload declares whether this plugin's Download
	// phase should be run at all; plugins that fetch and apply in one
	// step (spec.md §3 "supports separate download") leave it false and
	// the phase runner skips straight from Check to Execute.
	SupportsSeparateDownload bool
}

// Registry is a name-indexed table of plugin descriptors.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]PluginDescriptor)}
}

// Register adds or replaces a plugin descriptor.
func (r *Registry) Register(d PluginDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("plugin: descriptor has empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[d.Name] = d
	return nil
}

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (PluginDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.plugins[name]
	return d, ok
}

// Names returns all registered plugin names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		names = append(names, n)
	}
	return names
}

// All returns a snapshot of every registered descriptor.
func (r *Registry) All() []PluginDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PluginDescriptor, 0, len(r.plugins))
	for _, d := range r.plugins {
		out = append(out, d)
	}
	return out
}
