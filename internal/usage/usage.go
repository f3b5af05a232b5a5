// Package usage flattens analysis runs into inventories and aggregates
// per-library API usage.
package usage

import (
	"sort"
	"strings"

	"github.com/phobologic/apiaudit/internal/model"
)

// Build flattens run into an Inventory. Rows are ordered by path, line base
// and line so that repeated runs over the same files produce identical output.
func Build(run *model.Run, name string) *model.Inventory {
	inv := &model.Inventory{Name: name}

	modules := make([]*model.Module, len(run.Modules))
	copy(modules, run.Modules)
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Path != modules[j].Path {
			return modules[i].Path < modules[j].Path
		}
		return modules[i].LineBase < modules[j].LineBase
	})

	for _, m := range modules {
		inv.Modules = append(inv.Modules, model.ModuleRow{
			Source:   m.Source,
			Path:     m.Path,
			LineBase: m.LineBase,
			Imports:  len(m.Imports),
			Calls:    len(m.Calls),
		})
		inv.Imports = append(inv.Imports, importRows(m.Path, m.Imports)...)
		inv.DynamicImports = append(inv.DynamicImports, importRows(m.Path, m.DynamicImports)...)

		calls := make([]model.ApiCall, len(m.Calls))
		copy(calls, m.Calls)
		sort.SliceStable(calls, func(i, j int) bool { return calls[i].Line < calls[j].Line })
		for i := range calls {
			c := &calls[i]
			inv.Calls = append(inv.Calls, model.CallRow{
				Path:   m.Path,
				Name:   c.Name,
				Import: c.Import,
				Lib:    c.Lib,
				Line:   c.Line,
			})
		}
	}

	inv.Libraries = libraries(modules)
	return inv
}

func importRows(path string, table map[string]*model.ImportBinding) []model.ImportRow {
	rows := make([]model.ImportRow, 0, len(table))
	for _, b := range table {
		rows = append(rows, model.ImportRow{
			Path:   path,
			Name:   b.Name,
			Origin: b.Origin,
			Lib:    b.Lib,
			Line:   b.Line,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Line != rows[j].Line {
			return rows[i].Line < rows[j].Line
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// libraries aggregates imports and calls per library, most-called first.
func libraries(modules []*model.Module) []model.LibraryUsage {
	type agg struct {
		calls   int
		modules map[string]struct{}
		apis    map[string]struct{}
	}
	byLib := make(map[string]*agg)
	get := func(lib string) *agg {
		a := byLib[lib]
		if a == nil {
			a = &agg{modules: make(map[string]struct{}), apis: make(map[string]struct{})}
			byLib[lib] = a
		}
		return a
	}

	for _, m := range modules {
		for _, b := range m.Imports {
			get(b.Lib).modules[m.ID] = struct{}{}
		}
		for _, b := range m.DynamicImports {
			get(b.Lib).modules[m.ID] = struct{}{}
		}
		for i := range m.Calls {
			c := &m.Calls[i]
			a := get(c.Lib)
			a.calls++
			a.modules[m.ID] = struct{}{}
			a.apis[c.Name] = struct{}{}
		}
	}

	libs := make([]model.LibraryUsage, 0, len(byLib))
	for lib, a := range byLib {
		libs = append(libs, model.LibraryUsage{
			Lib:     lib,
			Calls:   a.calls,
			Modules: len(a.modules),
			APIs:    sortedKeys(a.apis),
		})
	}
	sort.Slice(libs, func(i, j int) bool {
		if libs[i].Calls != libs[j].Calls {
			return libs[i].Calls > libs[j].Calls
		}
		return libs[i].Lib < libs[j].Lib
	})
	return libs
}

// SelectLibraries returns a new Inventory restricted to the n most-called
// libraries. If n is <= 0 or >= the number of libraries, inv is returned.
func SelectLibraries(inv *model.Inventory, n int) *model.Inventory {
	if n <= 0 || n >= len(inv.Libraries) {
		return inv
	}
	keep := make(map[string]struct{}, n)
	for i := range inv.Libraries[:n] {
		keep[inv.Libraries[i].Lib] = struct{}{}
	}
	return restrict(inv, inv.Libraries[:n], func(lib string) bool {
		_, ok := keep[lib]
		return ok
	})
}

// FilterByLib returns a new Inventory containing only libraries whose
// specifier contains substr (case-insensitive), with their import and call
// rows and the modules those rows come from.
func FilterByLib(inv *model.Inventory, substr string) *model.Inventory {
	lower := strings.ToLower(substr)
	match := func(lib string) bool {
		return strings.Contains(strings.ToLower(lib), lower)
	}
	var libs []model.LibraryUsage
	for i := range inv.Libraries {
		if match(inv.Libraries[i].Lib) {
			libs = append(libs, inv.Libraries[i])
		}
	}
	return restrict(inv, libs, match)
}

func restrict(inv *model.Inventory, libs []model.LibraryUsage, keep func(lib string) bool) *model.Inventory {
	out := &model.Inventory{Name: inv.Name, Libraries: libs}
	paths := make(map[string]struct{})

	for i := range inv.Imports {
		if r := &inv.Imports[i]; keep(r.Lib) {
			out.Imports = append(out.Imports, *r)
			paths[r.Path] = struct{}{}
		}
	}
	for i := range inv.DynamicImports {
		if r := &inv.DynamicImports[i]; keep(r.Lib) {
			out.DynamicImports = append(out.DynamicImports, *r)
			paths[r.Path] = struct{}{}
		}
	}
	for i := range inv.Calls {
		if r := &inv.Calls[i]; keep(r.Lib) {
			out.Calls = append(out.Calls, *r)
		}
	}
	for i := range inv.Modules {
		if _, ok := paths[inv.Modules[i].Path]; ok {
			out.Modules = append(out.Modules, inv.Modules[i])
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
