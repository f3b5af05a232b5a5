package usage

import (
	"reflect"
	"testing"

	"github.com/phobologic/apiaudit/internal/model"
)

func makeRun() *model.Run {
	a := &model.Module{
		ID: "module-a", Source: "web", Path: "/src/b.ts",
		Imports: map[string]*model.ImportBinding{
			"get":   {Name: "get", Lib: "http-lib", Line: 1},
			"axios": {Name: "axios", Lib: "axios", Line: 2},
		},
		DynamicImports: map[string]*model.ImportBinding{
			"chart": {Name: "chart", Lib: "chart", Line: 9},
		},
		Calls: []model.ApiCall{
			{Name: "axios.post", Import: "axios", Lib: "axios", Line: 7},
			{Name: "get", Import: "get", Lib: "http-lib", Line: 4},
			{Name: "get", Import: "get", Lib: "http-lib", Line: 5},
		},
	}
	b := &model.Module{
		ID: "module-b", Source: "api", Path: "/src/a.ts",
		Imports: map[string]*model.ImportBinding{
			"foo": {Name: "bar", Origin: "foo", Lib: "http-lib", Line: 1},
		},
		Calls: []model.ApiCall{
			{Name: "foo", Import: "bar", Lib: "http-lib", Line: 3},
		},
	}
	return &model.Run{Modules: []*model.Module{a, b}}
}

func TestBuildOrdersRows(t *testing.T) {
	t.Parallel()

	inv := Build(makeRun(), "demo")

	if inv.Name != "demo" {
		t.Errorf("name = %q", inv.Name)
	}
	if len(inv.Modules) != 2 || inv.Modules[0].Path != "/src/a.ts" {
		t.Fatalf("modules not sorted by path: %+v", inv.Modules)
	}
	if inv.Modules[1].Imports != 2 || inv.Modules[1].Calls != 3 {
		t.Errorf("module counts = %+v", inv.Modules[1])
	}

	var callLines []int
	for _, c := range inv.Calls {
		callLines = append(callLines, c.Line)
	}
	if want := []int{3, 4, 5, 7}; !reflect.DeepEqual(callLines, want) {
		t.Errorf("call lines = %v, want %v", callLines, want)
	}

	if len(inv.Imports) != 3 || inv.Imports[0].Origin != "foo" || inv.Imports[0].Name != "bar" {
		t.Errorf("imports = %+v", inv.Imports)
	}
	if len(inv.DynamicImports) != 1 || inv.DynamicImports[0].Lib != "chart" {
		t.Errorf("dynamic imports = %+v", inv.DynamicImports)
	}
}

func TestBuildAggregatesLibraries(t *testing.T) {
	t.Parallel()

	inv := Build(makeRun(), "demo")

	want := []model.LibraryUsage{
		{Lib: "http-lib", Calls: 3, Modules: 2, APIs: []string{"foo", "get"}},
		{Lib: "axios", Calls: 1, Modules: 1, APIs: []string{"axios.post"}},
		{Lib: "chart", Calls: 0, Modules: 1, APIs: []string{}},
	}
	if !reflect.DeepEqual(inv.Libraries, want) {
		t.Errorf("libraries =\n%+v\nwant\n%+v", inv.Libraries, want)
	}
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	inv := Build(&model.Run{}, "empty")
	if len(inv.Modules) != 0 || len(inv.Calls) != 0 || len(inv.Libraries) != 0 {
		t.Errorf("expected empty inventory, got %+v", inv)
	}
}

func TestSelectLibrariesAll(t *testing.T) {
	t.Parallel()

	inv := Build(makeRun(), "demo")
	for _, n := range []int{0, 3, 5} {
		if got := SelectLibraries(inv, n); got != inv {
			t.Errorf("n=%d should return original", n)
		}
	}
}

func TestSelectLibrariesSubset(t *testing.T) {
	t.Parallel()

	got := SelectLibraries(Build(makeRun(), "demo"), 1)

	if len(got.Libraries) != 1 || got.Libraries[0].Lib != "http-lib" {
		t.Fatalf("libraries = %+v", got.Libraries)
	}
	if len(got.Calls) != 3 {
		t.Errorf("expected 3 http-lib calls, got %d", len(got.Calls))
	}
	for _, c := range got.Calls {
		if c.Lib != "http-lib" {
			t.Errorf("unexpected call %+v", c)
		}
	}
	if len(got.DynamicImports) != 0 {
		t.Errorf("expected no dynamic imports, got %+v", got.DynamicImports)
	}
	if len(got.Modules) != 2 {
		t.Errorf("expected both modules to survive, got %d", len(got.Modules))
	}
}

func TestFilterByLib(t *testing.T) {
	t.Parallel()

	got := FilterByLib(Build(makeRun(), "demo"), "AXI")

	if len(got.Libraries) != 1 || got.Libraries[0].Lib != "axios" {
		t.Fatalf("libraries = %+v", got.Libraries)
	}
	if len(got.Modules) != 1 || got.Modules[0].Path != "/src/b.ts" {
		t.Errorf("modules = %+v", got.Modules)
	}
	if len(got.Imports) != 1 || len(got.Calls) != 1 {
		t.Errorf("imports = %+v calls = %+v", got.Imports, got.Calls)
	}
}
