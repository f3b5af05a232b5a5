package hook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/apiaudit/internal/model"
)

// Driver owns the ordered hook chains for a fixed plugin list.
// Chains are built once in NewDriver and never change afterwards.
type Driver struct {
	chains map[Kind][]entry
	logger *slog.Logger

	mu       sync.Mutex
	failures []model.HookFailure
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for failure and misconfiguration reports.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDriver normalizes plugins into per-kind chains sorted pre, normal, post.
// Registration order is preserved inside each group.
func NewDriver(plugins []Plugin, opts ...Option) *Driver {
	d := &Driver{
		chains: make(map[Kind][]entry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, p := range plugins {
		for _, b := range p.bindings() {
			d.chains[b.kind] = append(d.chains[b.kind], b.entry)
		}
	}
	for kind, entries := range d.chains {
		d.chains[kind] = d.sortEntries(kind, entries)
	}
	return d
}

func (d *Driver) sortEntries(kind Kind, entries []entry) []entry {
	var pre, normal, post []entry
	for _, e := range entries {
		switch e.order {
		case Pre:
			pre = append(pre, e)
		case Post:
			post = append(post, e)
		case Normal, "":
			normal = append(normal, e)
		default:
			d.logger.Warn("hook has unknown order tag, treating as normal",
				slog.String("kind", string(kind)),
				slog.String("plugin", e.plugin),
				slog.String("order", string(e.order)))
			normal = append(normal, e)
		}
	}
	sorted := make([]entry, 0, len(entries))
	sorted = append(sorted, pre...)
	sorted = append(sorted, normal...)
	return append(sorted, post...)
}

// Sorted returns the plugin names implementing kind, in execution order.
func (d *Driver) Sorted(kind Kind) []string {
	chain := d.chains[kind]
	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.plugin
	}
	return names
}

// Failures returns a copy of every handler failure recorded so far.
func (d *Driver) Failures() []model.HookFailure {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.HookFailure, len(d.failures))
	copy(out, d.failures)
	return out
}

func (d *Driver) fail(kind Kind, plugin string, err error) {
	d.logger.Warn("hook failed",
		slog.String("kind", string(kind)),
		slog.String("plugin", plugin),
		slog.Any("error", err))

	d.mu.Lock()
	d.failures = append(d.failures, model.HookFailure{Kind: string(kind), Plugin: plugin, Err: err})
	d.mu.Unlock()
}

// invoke runs one handler, converting errors and panics into a nil result.
func (d *Driver) invoke(ctx context.Context, kind Kind, e entry, arg any) (res any) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(kind, e.plugin, fmt.Errorf("panic: %v", r))
			res = nil
		}
	}()

	out, err := e.call(ctx, arg)
	if err != nil {
		d.fail(kind, e.plugin, err)
		return nil
	}
	return out
}

// result narrows a handler's output to R. A missing result yields ok=false.
func result[R any](d *Driver, kind Kind, plugin string, v any) (R, bool) {
	var zero R
	if v == nil {
		return zero, false
	}
	r, ok := v.(R)
	if !ok {
		d.fail(kind, plugin, fmt.Errorf("%w: result %T", ErrHookShape, v))
		return zero, false
	}
	return r, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// FirstSync calls handlers in order and returns the first non-nil result.
// Handlers after the match are not called.
func FirstSync[A, R any](d *Driver, kind Kind, arg A) (R, bool) {
	for _, e := range d.chains[kind] {
		r, ok := result[R](d, kind, e.plugin, d.invoke(context.Background(), kind, e, arg))
		if ok && !isNil(r) {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// First is the context-aware form of FirstSync. It stops with the context
// error if ctx is done before a handler runs.
func First[A, R any](ctx context.Context, d *Driver, kind Kind, arg A) (R, bool, error) {
	var zero R
	for _, e := range d.chains[kind] {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		r, ok := result[R](d, kind, e.plugin, d.invoke(ctx, kind, e, arg))
		if ok && !isNil(r) {
			return r, true, nil
		}
	}
	return zero, false, nil
}

// ReduceSync folds every handler's result into an accumulator. All handlers
// receive the same arg; a failed handler contributes the zero R.
func ReduceSync[A, R any](d *Driver, kind Kind, init R, arg A, combine func(acc, res R, plugin string) R) R {
	acc := init
	for _, e := range d.chains[kind] {
		r, _ := result[R](d, kind, e.plugin, d.invoke(context.Background(), kind, e, arg))
		acc = combine(acc, r, e.plugin)
	}
	return acc
}

// Reduce is the context-aware form of ReduceSync.
func Reduce[A, R any](ctx context.Context, d *Driver, kind Kind, init R, arg A, combine func(acc, res R, plugin string) R) (R, error) {
	acc := init
	for _, e := range d.chains[kind] {
		if err := ctx.Err(); err != nil {
			return acc, err
		}
		r, _ := result[R](d, kind, e.plugin, d.invoke(ctx, kind, e, arg))
		acc = combine(acc, r, e.plugin)
	}
	return acc, nil
}

// ReduceArg0Sync threads arg through the handlers as a pipeline: each handler
// sees the value combined from the previous one.
func ReduceArg0Sync[A, R any](d *Driver, kind Kind, arg A, combine func(arg A, res R, plugin string) A) A {
	for _, e := range d.chains[kind] {
		r, _ := result[R](d, kind, e.plugin, d.invoke(context.Background(), kind, e, arg))
		arg = combine(arg, r, e.plugin)
	}
	return arg
}

// ReduceArg0 is the context-aware form of ReduceArg0Sync.
func ReduceArg0[A, R any](ctx context.Context, d *Driver, kind Kind, arg A, combine func(arg A, res R, plugin string) A) (A, error) {
	for _, e := range d.chains[kind] {
		if err := ctx.Err(); err != nil {
			return arg, err
		}
		r, _ := result[R](d, kind, e.plugin, d.invoke(ctx, kind, e, arg))
		arg = combine(arg, r, e.plugin)
	}
	return arg, nil
}

// ParallelSync calls every handler in order and discards the results.
func ParallelSync[A any](d *Driver, kind Kind, arg A) {
	for _, e := range d.chains[kind] {
		d.invoke(context.Background(), kind, e, arg)
	}
}

// Parallel runs every handler concurrently with the same arg and waits for
// all of them. Results are discarded.
func Parallel[A any](ctx context.Context, d *Driver, kind Kind, arg A) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var g errgroup.Group
	for _, e := range d.chains[kind] {
		g.Go(func() error {
			d.invoke(ctx, kind, e, arg)
			return nil
		})
	}
	return g.Wait()
}

// ScanFiles concatenates the paths every scanFiles hook finds beneath roots.
func (d *Driver) ScanFiles(ctx context.Context, roots []string) ([]string, error) {
	return Reduce(ctx, d, KindScanFiles, []string(nil), roots, func(acc, res []string, _ string) []string {
		return append(acc, res...)
	})
}

// Parse returns the units from the first parse hook that claims path.
func (d *Driver) Parse(path string) ([]model.Unit, bool) {
	return FirstSync[string, []model.Unit](d, KindParse, path)
}

// Analyze notifies every analyze hook about m.
func (d *Driver) Analyze(ctx context.Context, m *model.Module) error {
	return Parallel(ctx, d, KindAnalyze, m)
}

// Result combines every result hook with logical AND, starting from true.
// A failed validator counts as false.
func (d *Driver) Result(run *model.Run) bool {
	return ReduceSync(d, KindResult, true, run, func(acc, res bool, _ string) bool {
		return acc && res
	})
}

// EndTap runs every endTap hook concurrently.
func (d *Driver) EndTap(ctx context.Context, run *model.Run) error {
	return Parallel(ctx, d, KindEndTap, run)
}
