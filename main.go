// apiaudit inventories the third-party APIs a JavaScript or TypeScript
// codebase imports and calls.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/phobologic/apiaudit/internal/analysis"
	"github.com/phobologic/apiaudit/internal/config"
	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/plugins/base"
	"github.com/phobologic/apiaudit/internal/plugins/metrics"
	"github.com/phobologic/apiaudit/internal/plugins/policy"
	"github.com/phobologic/apiaudit/internal/plugins/report"
	"github.com/phobologic/apiaudit/internal/plugins/store"
	"github.com/phobologic/apiaudit/internal/plugins/vue"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type rootFlags struct {
	configPath  string
	format      string
	output      string
	maxLibs     int
	lib         string
	maxFileSize int64
	skipTests   bool
	sqlite      string
	metricsFile string
	deny        []string
	plugins     []string
	logLevel    string
	logFormat   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "apiaudit [roots...]",
		Short: "Inventory third-party API usage in JavaScript and TypeScript sources",
		Long: `apiaudit scans one or more source roots, records every import binding in
each module, and resolves which identifiers in the code refer to those
imports. The resulting inventory is reported per library.

Roots given on the command line replace the entries from the config file.
With neither, the current directory is scanned.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args, &f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("apiaudit {{.Version}}\n")

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (default ./"+config.FileName+")")
	fl.StringVarP(&f.format, "format", "f", report.FormatTOON, "report format: toon|json|yaml")
	fl.StringVarP(&f.output, "output", "o", "", "write the report to a file instead of stdout")
	fl.IntVarP(&f.maxLibs, "max-libs", "n", 0, "report only the N most-called libraries")
	fl.StringVar(&f.lib, "lib", "", "report only libraries whose specifier contains this substring")
	fl.Int64Var(&f.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "skip files larger than this many bytes")
	fl.BoolVar(&f.skipTests, "skip-tests", false, "skip test files and test directories")
	fl.StringVar(&f.sqlite, "sqlite", "", "also write the inventory to this SQLite database")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "also write Prometheus metrics to this textfile")
	fl.StringSliceVar(&f.deny, "deny", nil, "fail when any of these libraries is imported")
	fl.StringSliceVar(&f.plugins, "plugins", nil, "extensions to enable: "+strings.Join(config.Plugins, ","))
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "", "log format: auto|text|json (auto is text on a terminal)")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *rootFlags) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Report.Format = f.format
	}
	if changed("output") {
		cfg.Report.Output = f.output
	}
	if changed("max-libs") {
		cfg.Report.MaxLibs = f.maxLibs
	}
	if changed("lib") {
		cfg.Report.Lib = f.lib
	}
	if changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if changed("skip-tests") {
		cfg.SkipTests = f.skipTests
	}
	if changed("plugins") {
		cfg.Plugins = f.plugins
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("deny") {
		cfg.Policy.Deny = f.deny
		enable(cfg, policy.Name)
	}
	if changed("sqlite") {
		cfg.SQLite.Path = f.sqlite
		enable(cfg, store.Name)
	}
	if changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
		enable(cfg, metrics.Name)
	}
}

func enable(cfg *config.Config, name string) {
	if !cfg.Enabled(name) {
		cfg.Plugins = append(cfg.Plugins, name)
	}
}

// entriesFor turns positional roots into a single entry named after the
// first root. Every root must be an existing directory.
func entriesFor(roots []string) ([]model.Entry, error) {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("root path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: not a directory", root)
		}
	}
	abs, err := filepath.Abs(roots[0])
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	return []model.Entry{{Name: filepath.Base(abs), Roots: roots}}, nil
}

func runAudit(cmd *cobra.Command, args []string, f *rootFlags, stdout, stderr io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, f)

	switch {
	case len(args) > 0:
		if cfg.Entries, err = entriesFor(args); err != nil {
			return err
		}
	case len(cfg.Entries) == 0:
		if cfg.Entries, err = entriesFor([]string{"."}); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.LogLevel()
	logger := newLogger(stderr, cfg.Log.Format, level)

	a := analysis.New(analysis.Options{
		Entries:  cfg.Entries,
		Plugins:  buildPlugins(cfg, stdout, logger),
		Baseline: base.New(base.Options{MaxFileSize: cfg.MaxFileSize, SkipTests: cfg.SkipTests, Logger: logger}),
		Logger:   logger,
	})
	if _, err := a.Run(cmd.Context()); err != nil {
		return err
	}
	return nil
}

// buildPlugins instantiates the enabled extensions in the order cfg lists
// them. A name listed twice is registered once.
func buildPlugins(cfg *config.Config, stdout io.Writer, logger *slog.Logger) []hook.Plugin {
	var plugins []hook.Plugin
	seen := make(map[string]struct{}, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		switch name {
		case vue.Name:
			plugins = append(plugins, vue.New(vue.Options{SkipTests: cfg.SkipTests, Logger: logger}))
		case report.Name:
			plugins = append(plugins, report.New(report.Options{
				Title:   title(cfg.Entries),
				Format:  cfg.Report.Format,
				Output:  cfg.Report.Output,
				MaxLibs: cfg.Report.MaxLibs,
				Lib:     cfg.Report.Lib,
				Stdout:  stdout,
				Logger:  logger,
			}))
		case store.Name:
			plugins = append(plugins, store.New(store.Options{
				Path:   cfg.SQLite.Path,
				Title:  title(cfg.Entries),
				Logger: logger,
			}))
		case policy.Name:
			plugins = append(plugins, policy.New(policy.Options{
				Deny:             cfg.Policy.Deny,
				MinModules:       cfg.Policy.MinModules,
				FailOnHookErrors: cfg.Policy.FailOnHookErrors,
				Logger:           logger,
			}))
		case metrics.Name:
			plugins = append(plugins, metrics.New(metrics.NewRecorder(), metrics.Options{
				File:   cfg.Metrics.File,
				Logger: logger,
			}))
		}
	}
	return plugins
}

// newLogger writes text logs to terminals and JSON lines everywhere else,
// unless format forces one of them.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func title(entries []model.Entry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return strings.Join(names, ",")
}
