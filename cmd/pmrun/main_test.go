package main

import (
	"testing"

	"gitlab.com/tinyland/lab/pmrun/internal/config"
	"gitlab.com/tinyland/lab/pmrun/internal/plugin"
)

func testRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	plugin.RegisterBuiltins(r)
	return r
}

func TestSelectPluginsDefaultsToEverything(t *testing.T) {
	descs, err := selectPlugins(testRegistry(), "", config.DefaultRunConfig())
	if err != nil {
		t.Fatalf("selectPlugins: %v", err)
	}
	if len(descs) != 5 {
		t.Fatalf("got %d plugins, want 5", len(descs))
	}
}

func TestSelectPluginsFiltersByFlag(t *testing.T) {
	descs, err := selectPlugins(testRegistry(), "apt, snap", config.DefaultRunConfig())
	if err != nil {
		t.Fatalf("selectPlugins: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d plugins, want 2", len(descs))
	}
	if descs[0].Name != "apt" || descs[1].Name != "snap" {
		t.Errorf("unexpected order/names: %+v", descs)
	}
}

func TestSelectPluginsRejectsUnknownName(t *testing.T) {
	if _, err := selectPlugins(testRegistry(), "not-a-plugin", config.DefaultRunConfig()); err == nil {
		t.Fatal("expected an error for an unknown plugin name")
	}
}

func TestSelectPluginsHonorsDisabledOverride(t *testing.T) {
	cfg := config.DefaultRunConfig()
	disabled := false
	cfg.Plugins = map[string]config.PluginOverride{
		"apt": {Enabled: &disabled},
	}
	descs, err := selectPlugins(testRegistry(), "apt,snap", cfg)
	if err != nil {
		t.Fatalf("selectPlugins: %v", err)
	}
	if len(descs) != 1 || descs[0].Name != "snap" {
		t.Fatalf("expected only snap after disabling apt, got %+v", descs)
	}
}
