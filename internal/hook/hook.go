// Package hook dispatches extension hooks with fixed composition strategies.
//
// Extensions are plain Plugin values carrying optional typed hooks. A Driver
// normalizes them once into ordered chains per Kind and then runs those
// chains with first-match, reduce, pipeline or parallel semantics. A handler
// that returns an error or panics is recorded and treated as having produced
// no result; it never stops its siblings.
package hook

import (
	"context"
	"errors"
	"fmt"

	"github.com/phobologic/apiaudit/internal/model"
)

// Kind names an extension point.
type Kind string

const (
	KindScanFiles Kind = "scanFiles"
	KindParse     Kind = "parse"
	KindAnalyze   Kind = "analyze"
	KindResult    Kind = "result"
	KindEndTap    Kind = "endTap"
)

// Order places a hook relative to the other plugins implementing the same kind.
type Order string

const (
	Pre    Order = "pre"
	Normal Order = "normal"
	Post   Order = "post"
)

// ErrHookShape reports an argument or result whose type does not match the hook.
var ErrHookShape = errors.New("unexpected hook shape")

// Hook is a handler with an optional order tag. The zero Hook is unset.
type Hook[F any] struct {
	Handler F
	Order   Order
}

// Bare wraps a handler with the default (normal) order.
func Bare[F any](handler F) Hook[F] {
	return Hook[F]{Handler: handler}
}

// Ordered wraps a handler with an explicit order tag.
func Ordered[F any](handler F, order Order) Hook[F] {
	return Hook[F]{Handler: handler, Order: order}
}

type (
	// ScanFilesFunc returns the files found beneath roots.
	ScanFilesFunc func(ctx context.Context, roots []string) ([]string, error)

	// ParseFunc returns the units for path, or nil if the plugin does not
	// handle that file.
	ParseFunc func(path string) ([]model.Unit, error)

	// AnalyzeFunc observes a module once both extraction passes are done.
	AnalyzeFunc func(ctx context.Context, m *model.Module) error

	// ResultFunc validates a finished run. Results are combined with AND.
	ResultFunc func(run *model.Run) (bool, error)

	// EndTapFunc performs final side effects such as writing reports.
	EndTapFunc func(ctx context.Context, run *model.Run) error
)

// Plugin is a named bundle of hooks. Unset hooks are skipped.
type Plugin struct {
	Name      string
	ScanFiles Hook[ScanFilesFunc]
	Parse     Hook[ParseFunc]
	Analyze   Hook[AnalyzeFunc]
	Result    Hook[ResultFunc]
	EndTap    Hook[EndTapFunc]
}

// invoker is the normalized form every handler is reduced to.
type invoker func(ctx context.Context, arg any) (any, error)

type entry struct {
	plugin string
	order  Order
	call   invoker
}

type binding struct {
	kind  Kind
	entry entry
}

func adapt[A, R any](h func(context.Context, A) (R, error)) invoker {
	return func(ctx context.Context, arg any) (any, error) {
		a, ok := arg.(A)
		if !ok {
			return nil, fmt.Errorf("%w: argument %T", ErrHookShape, arg)
		}
		return h(ctx, a)
	}
}

// bindings flattens the plugin's set hooks in kind order.
func (p Plugin) bindings() []binding {
	var out []binding
	add := func(kind Kind, order Order, call invoker) {
		out = append(out, binding{kind: kind, entry: entry{plugin: p.Name, order: order, call: call}})
	}

	if h := p.ScanFiles.Handler; h != nil {
		add(KindScanFiles, p.ScanFiles.Order, adapt[[]string, []string](h))
	}
	if h := p.Parse.Handler; h != nil {
		add(KindParse, p.Parse.Order, adapt(func(_ context.Context, path string) ([]model.Unit, error) {
			return h(path)
		}))
	}
	if h := p.Analyze.Handler; h != nil {
		add(KindAnalyze, p.Analyze.Order, adapt(func(ctx context.Context, m *model.Module) (struct{}, error) {
			return struct{}{}, h(ctx, m)
		}))
	}
	if h := p.Result.Handler; h != nil {
		add(KindResult, p.Result.Order, adapt(func(_ context.Context, run *model.Run) (bool, error) {
			return h(run)
		}))
	}
	if h := p.EndTap.Handler; h != nil {
		add(KindEndTap, p.EndTap.Order, adapt(func(ctx context.Context, run *model.Run) (struct{}, error) {
			return struct{}{}, h(ctx, run)
		}))
	}
	return out
}
