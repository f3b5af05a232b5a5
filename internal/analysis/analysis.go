// Package analysis drives the scan, parse, extract and emit stages of one
// inventory run.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phobologic/apiaudit/internal/apicall"
	"github.com/phobologic/apiaudit/internal/binding"
	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
)

// ErrRejected is returned when the combined result hooks reject a run.
var ErrRejected = errors.New("run rejected by result hooks")

// Options configures an Analyzer.
type Options struct {
	Entries []model.Entry
	Plugins []hook.Plugin
	// Baseline is registered after every plugin in Plugins.
	Baseline hook.Plugin
	Logger   *slog.Logger
}

// Analyzer runs the pipeline for a fixed set of entries and plugins.
type Analyzer struct {
	entries []model.Entry
	driver  *hook.Driver
	logger  *slog.Logger
	newID   func() string
}

// New builds the hook driver. The plugin list is fixed from here on.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	plugins := make([]hook.Plugin, 0, len(opts.Plugins)+1)
	plugins = append(plugins, opts.Plugins...)
	plugins = append(plugins, opts.Baseline)

	return &Analyzer{
		entries: opts.Entries,
		driver:  hook.NewDriver(plugins, hook.WithLogger(logger)),
		logger:  logger,
		newID:   func() string { return "module-" + uuid.NewString() },
	}
}

// Driver exposes the hook driver, mainly for inspecting failures.
func (a *Analyzer) Driver() *hook.Driver {
	return a.driver
}

// Run executes one analysis. When the result hooks reject the run it returns
// the run together with ErrRejected and endTap hooks are not called.
func (a *Analyzer) Run(ctx context.Context) (*model.Run, error) {
	run := &model.Run{}

	sources, err := a.scan(ctx)
	if err != nil {
		return nil, err
	}
	run.Sources = sources

	for _, src := range sources {
		for _, path := range src.Paths {
			if err := a.analyzeFile(ctx, run, src.Name, path); err != nil {
				return nil, err
			}
		}
	}

	run.Failures = a.driver.Failures()
	if !a.driver.Result(run) {
		run.Failures = a.driver.Failures()
		a.logger.Warn("run rejected",
			slog.Int("modules", len(run.Modules)),
			slog.Int("failures", len(run.Failures)))
		return run, ErrRejected
	}

	if err := a.driver.EndTap(ctx, run); err != nil {
		return nil, fmt.Errorf("end tap: %w", err)
	}
	run.Failures = a.driver.Failures()

	a.logger.Info("analysis complete",
		slog.Int("sources", len(run.Sources)),
		slog.Int("modules", len(run.Modules)),
		slog.Int("failures", len(run.Failures)))
	return run, nil
}

// scan resolves every entry to a de-duplicated path list, keeping the order
// in which scanFiles hooks reported them.
func (a *Analyzer) scan(ctx context.Context) ([]model.Source, error) {
	sources := make([]model.Source, 0, len(a.entries))
	for _, entry := range a.entries {
		paths, err := a.driver.ScanFiles(ctx, entry.Roots)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", entry.Name, err)
		}

		seen := make(map[string]struct{}, len(paths))
		unique := make([]string, 0, len(paths))
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			unique = append(unique, p)
		}

		a.logger.Debug("scanned entry",
			slog.String("entry", entry.Name),
			slog.Int("files", len(unique)))
		sources = append(sources, model.Source{Name: entry.Name, Paths: unique})
	}
	return sources, nil
}

// analyzeFile parses path and runs both extraction passes over each unit.
// Files no parse hook claims are dropped.
func (a *Analyzer) analyzeFile(ctx context.Context, run *model.Run, source, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	units, ok := a.driver.Parse(path)
	if !ok {
		a.logger.Debug("file not claimed", slog.String("path", path))
		return nil
	}

	for _, u := range units {
		if u.Tree == nil {
			continue
		}
		m := model.NewModule(a.newID(), source, path, u)
		binding.Extract(m)
		apicall.Resolve(m)

		if err := a.driver.Analyze(ctx, m); err != nil {
			return fmt.Errorf("analyzing %s: %w", path, err)
		}
		run.Modules = append(run.Modules, m)
	}
	return nil
}
