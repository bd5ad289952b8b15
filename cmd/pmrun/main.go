// pmrun orchestrates a set of concurrent package-manager update jobs, each
// running under its own pty-backed terminal, and presents them through an
// interactive bubbletea dashboard or (with -headless) a plain summary
// table suitable for CI.
//
// Usage:
//
//	pmrun [flags]
//
// Flags:
//
//	-config string            Path to the run-config TOML file (default: XDG search path)
//	-keybindings string        Path to the key-binding TOML file (default: XDG search path)
//	-concurrency int           Override the configured max concurrent jobs (0 = use config)
//	-dry-run                   Run every job's phases in dry-run mode
//	-continue-on-error         Keep running independent jobs after one fails
//	-plugins string            Comma-separated list of plugin names to run (default: all registered)
//	-headless                  Run without the TUI, print a summary table and exit
//	-log-level string          slog level: debug, info, warn, error (default: info)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/pmrun/internal/config"
	"gitlab.com/tinyland/lab/pmrun/internal/inputrouter"
	"gitlab.com/tinyland/lab/pmrun/internal/orchestrator"
	"gitlab.com/tinyland/lab/pmrun/internal/plugin"
	"gitlab.com/tinyland/lab/pmrun/internal/ui"
	"gitlab.com/tinyland/lab/pmrun/internal/uiflush"
	"gitlab.com/tinyland/lab/pmrun/pkg/components"
	"gitlab.com/tinyland/lab/pmrun/pkg/ptysession"
	"gitlab.com/tinyland/lab/pmrun/pkg/theme"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath      = flag.String("config", "", "Path to the run-config TOML file")
		keybindingsPath = flag.String("keybindings", "", "Path to the key-binding TOML file")
		concurrency     = flag.Int("concurrency", 0, "Override the configured max concurrent jobs")
		dryRun          = flag.Bool("dry-run", false, "Run every job's phases in dry-run mode")
		continueOnErr   = flag.Bool("continue-on-error", false, "Keep running independent jobs after one fails")
		pluginsFlag     = flag.String("plugins", "", "Comma-separated list of plugin names to run (default: all)")
		headless        = flag.Bool("headless", false, "Run without the TUI, print a summary table and exit")
		logLevel        = flag.String("log-level", "", "slog level: debug, info, warn, error")
	)
	flag.Parse()

	logger := newLogger(*logLevel)

	cfg, err := loadRunConfig(*configPath, *logLevel)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *continueOnErr {
		cfg.ContinueOnError = true
	}

	if err := loadTheme(cfg); err != nil {
		logger.Error("failed to load theme file", "error", err)
		return 1
	}
	if isatty.IsTerminal(os.Stdout.Fd()) && !ui.DetectTrueColor() {
		theme.Current = theme.Adapt(theme.Current, 8)
	}

	registry := plugin.NewRegistry()
	plugin.RegisterBuiltins(registry)
	descs, err := selectPlugins(registry, *pluginsFlag, cfg)
	if err != nil {
		logger.Error("invalid plugin selection", "error", err)
		return 2
	}

	size := ptysession.DetectTermSize()
	cols, rows := size.Cols, size.Rows

	orchCfg := orchestrator.Config{
		MaxConcurrent:      cfg.Concurrency,
		ContinueOnError:    cfg.ContinueOnError,
		DryRun:             cfg.DryRun,
		PauseBetweenPhases: cfg.PauseBetweenPhases,
		MaxRetries:         cfg.MaxRetries,
		DefaultStallAfter:  cfg.DefaultStallAfter.Duration,
		Env:                os.Environ(),
		Cols:               cols,
		Rows:               rows,
	}

	flusher := uiflush.New(uiflush.DefaultMaxFPS, uiflush.DefaultMaxBatchSize, 0)

	orch, err := orchestrator.New(descs, orchCfg, flusher.Enqueue)
	if err != nil {
		logger.Error("invalid run configuration", "error", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		interrupted.Store(true)
		cancel()
	}()

	go flusher.Run()
	defer flusher.Stop()

	if *headless {
		logger.Info("starting pmrun (headless)", "run_id", orch.RunID(), "plugins", pluginNames(descs), "concurrency", orchCfg.MaxConcurrent)
		orch.Run(ctx)
		printSummary(orch)
		if err := orch.HardError(); err != nil {
			logger.Error("job supervisor error", "error", err)
			return 1
		}
		if interrupted.Load() {
			return 130
		}
		return orch.ExitCode()
	}

	bindings, err := loadBindings(*keybindingsPath)
	if err != nil {
		logger.Error("failed to load key bindings", "error", err)
		return 1
	}
	router := inputrouter.New(bindings)

	runDone := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(runDone)
	}()

	model := ui.New(orch, flusher, router, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		cancel()
		<-runDone
		return 1
	}

	cancel()
	<-runDone

	if err := orch.HardError(); err != nil {
		logger.Error("job supervisor error", "error", err)
		return 1
	}
	if interrupted.Load() {
		return 130
	}
	return orch.ExitCode()
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func loadRunConfig(path, logLevelFlag string) (*config.RunConfig, error) {
	var cfg *config.RunConfig
	var err error
	if path != "" {
		cfg, err = config.LoadRunConfigFile(path)
	} else {
		cfg, err = config.LoadRunConfig()
	}
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg, nil
}

// loadTheme sets the active theme from cfg.Theme, then, if cfg.ThemeFile is
// set, loads and registers a custom palette from that TOML file and makes
// it current, overriding cfg.Theme.
func loadTheme(cfg *config.RunConfig) error {
	theme.SetCurrent(cfg.Theme)
	if cfg.ThemeFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.ThemeFile)
	if err != nil {
		return fmt.Errorf("read theme file %s: %w", cfg.ThemeFile, err)
	}
	t, err := theme.LoadFromTOML(data)
	if err != nil {
		return fmt.Errorf("load theme file %s: %w", cfg.ThemeFile, err)
	}
	if err := theme.Register(t); err != nil {
		return fmt.Errorf("register theme from %s: %w", cfg.ThemeFile, err)
	}
	theme.SetCurrent(t.Name)
	return nil
}

func loadBindings(path string) (inputrouter.Bindings, error) {
	if path != "" {
		return config.LoadBindingsFile(path)
	}
	return config.LoadBindings()
}

// selectPlugins filters the registry down to the comma-separated list in
// pluginsFlag (all plugins sorted by name if empty), and applies any per-plugin
// overrides from the run config.
func selectPlugins(registry *plugin.Registry, pluginsFlag string, cfg *config.RunConfig) ([]plugin.PluginDescriptor, error) {
	names := registry.Names()
	sort.Strings(names)

	if pluginsFlag != "" {
		wanted := strings.Split(pluginsFlag, ",")
		names = names[:0]
		for _, n := range wanted {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if _, ok := registry.Get(n); !ok {
				return nil, fmt.Errorf("unknown plugin %q", n)
			}
			names = append(names, n)
		}
	}

	descs := make([]plugin.PluginDescriptor, 0, len(names))
	for _, n := range names {
		d, _ := registry.Get(n)
		if ov, ok := cfg.Plugins[n]; ok {
			if ov.Enabled != nil && !*ov.Enabled {
				continue
			}
			if ov.Timeout.Duration > 0 {
				d.Execute.Timeout = ov.Timeout.Duration
			}
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func pluginNames(descs []plugin.PluginDescriptor) []string {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

func printSummary(orch *orchestrator.Orchestrator) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println(components.Bold("pmrun summary"), "run", orch.RunID())
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "PLUGIN\tPHASE\tSTATUS\tPACKAGES\tWALL TIME")
	for _, row := range orch.Summary() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", row.Plugin, row.PhaseReached, row.Status, row.PackagesUpdated, row.WallTime.Round(1e6))
	}
	w.Flush()
}
