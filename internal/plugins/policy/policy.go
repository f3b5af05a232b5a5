// Package policy validates a finished run against a library deny list and
// simple coverage rules.
package policy

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
)

// Name is the policy plugin's name.
const Name = "policy"

// Options configures the policy plugin.
type Options struct {
	// Deny lists forbidden libraries. An entry matches the specifier exactly
	// or any subpath of it ("lodash" denies "lodash/fp").
	Deny []string
	// MinModules rejects runs that analyzed fewer modules.
	MinModules int
	// FailOnHookErrors rejects runs in which any extension failed.
	FailOnHookErrors bool
	Logger           *slog.Logger
}

// Violation is one reason a run was rejected.
type Violation struct {
	Rule   string
	Path   string
	Line   int
	Detail string
}

// New returns the policy plugin.
func New(opts Options) hook.Plugin {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	validate := func(run *model.Run) (bool, error) {
		violations := Check(run, opts)
		for _, v := range violations {
			opts.Logger.Error("policy violation",
				slog.String("rule", v.Rule),
				slog.String("path", v.Path),
				slog.Int("line", v.Line),
				slog.String("detail", v.Detail))
		}
		return len(violations) == 0, nil
	}
	return hook.Plugin{
		Name:   Name,
		Result: hook.Bare(hook.ResultFunc(validate)),
	}
}

// Check returns every violation in run, in module order.
func Check(run *model.Run, opts Options) []Violation {
	var out []Violation

	for _, m := range run.Modules {
		for _, b := range sortedBindings(m) {
			if denied(opts.Deny, b.Lib) {
				out = append(out, Violation{Rule: "deny", Path: m.Path, Line: b.Line, Detail: "imports " + b.Lib})
			}
		}
		for i := range m.Calls {
			c := &m.Calls[i]
			if denied(opts.Deny, c.Lib) {
				out = append(out, Violation{Rule: "deny", Path: m.Path, Line: c.Line, Detail: "calls " + c.Name + " from " + c.Lib})
			}
		}
	}

	if len(run.Modules) < opts.MinModules {
		out = append(out, Violation{Rule: "min_modules", Detail: "too few modules analyzed"})
	}

	if opts.FailOnHookErrors {
		for _, f := range run.Failures {
			out = append(out, Violation{Rule: "hook_error", Detail: f.Kind + " hook of " + f.Plugin + " failed: " + errString(f.Err)})
		}
	}
	return out
}

func denied(deny []string, lib string) bool {
	for _, d := range deny {
		if lib == d || strings.HasPrefix(lib, d+"/") {
			return true
		}
	}
	return false
}

// sortedBindings returns static then dynamic imports ordered by line.
func sortedBindings(m *model.Module) []*model.ImportBinding {
	var out []*model.ImportBinding
	for _, table := range []map[string]*model.ImportBinding{m.Imports, m.DynamicImports} {
		for _, b := range table {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
