// Package metrics counts analysis results on a private Prometheus registry
// and exports them in the node_exporter textfile format.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
)

// Name is the metrics plugin's name.
const Name = "metrics"

// Options configures the metrics plugin.
type Options struct {
	// File is the textfile written at the end of a run.
	File   string
	Logger *slog.Logger
}

// Recorder holds the run's collectors.
type Recorder struct {
	registry *prometheus.Registry

	modulesTotal  *prometheus.CounterVec
	importsTotal  *prometheus.CounterVec
	callsTotal    *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	librariesSeen prometheus.Gauge
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		// modulesTotal counts analyzed modules by entry.
		modulesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apiaudit",
			Subsystem: "analysis",
			Name:      "modules_total",
			Help:      "Analyzed modules by entry",
		}, []string{"source"}),
		importsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apiaudit",
			Subsystem: "analysis",
			Name:      "imports_total",
			Help:      "Import bindings by library and kind",
		}, []string{"lib", "kind"}),
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apiaudit",
			Subsystem: "analysis",
			Name:      "calls_total",
			Help:      "Resolved API call sites by library",
		}, []string{"lib"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apiaudit",
			Subsystem: "hooks",
			Name:      "failures_total",
			Help:      "Extension hook failures by kind and plugin",
		}, []string{"kind", "plugin"}),
		librariesSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "apiaudit",
			Subsystem: "analysis",
			Name:      "libraries",
			Help:      "Distinct libraries imported in the last run",
		}),
	}
}

// ObserveModule records one module's imports and calls. Safe for concurrent use.
func (r *Recorder) ObserveModule(m *model.Module) {
	r.modulesTotal.WithLabelValues(m.Source).Inc()
	for _, b := range m.Imports {
		r.importsTotal.WithLabelValues(b.Lib, "static").Inc()
	}
	for _, b := range m.DynamicImports {
		r.importsTotal.WithLabelValues(b.Lib, "dynamic").Inc()
	}
	for i := range m.Calls {
		r.callsTotal.WithLabelValues(m.Calls[i].Lib).Inc()
	}
}

// ObserveRun records run-level results.
func (r *Recorder) ObserveRun(run *model.Run) {
	libs := make(map[string]struct{})
	for _, m := range run.Modules {
		for _, b := range m.Imports {
			libs[b.Lib] = struct{}{}
		}
		for _, b := range m.DynamicImports {
			libs[b.Lib] = struct{}{}
		}
	}
	r.librariesSeen.Set(float64(len(libs)))
	for _, f := range run.Failures {
		r.failuresTotal.WithLabelValues(f.Kind, f.Plugin).Inc()
	}
}

// WriteTextfile writes every collector to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// New returns the metrics plugin backed by rec.
func New(rec *Recorder, opts Options) hook.Plugin {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	analyze := func(_ context.Context, m *model.Module) error {
		rec.ObserveModule(m)
		return nil
	}
	endTap := func(_ context.Context, run *model.Run) error {
		rec.ObserveRun(run)
		if opts.File == "" {
			return nil
		}
		if err := rec.WriteTextfile(opts.File); err != nil {
			return err
		}
		opts.Logger.Info("metrics written", slog.String("path", opts.File))
		return nil
	}
	return hook.Plugin{
		Name:    Name,
		Analyze: hook.Bare(hook.AnalyzeFunc(analyze)),
		EndTap:  hook.Bare(hook.EndTapFunc(endTap)),
	}
}
