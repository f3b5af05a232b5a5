package model

// Inventory is the flattened, serializable view of a Run.
type Inventory struct {
	Name           string         `json:"name" yaml:"name"`
	Modules        []ModuleRow    `json:"modules" yaml:"modules"`
	Imports        []ImportRow    `json:"imports" yaml:"imports"`
	DynamicImports []ImportRow    `json:"dynamic_imports" yaml:"dynamic_imports"`
	Calls          []CallRow      `json:"calls" yaml:"calls"`
	Libraries      []LibraryUsage `json:"libraries" yaml:"libraries"`
}

// ModuleRow summarizes one module.
type ModuleRow struct {
	Source   string `json:"source" yaml:"source"`
	Path     string `json:"path" yaml:"path"`
	LineBase int    `json:"line_base" yaml:"line_base"`
	Imports  int    `json:"imports" yaml:"imports"`
	Calls    int    `json:"calls" yaml:"calls"`
}

// ImportRow is one import binding together with the file that declares it.
type ImportRow struct {
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Lib    string `json:"lib" yaml:"lib"`
	Line   int    `json:"line" yaml:"line"`
}

// CallRow is one call site together with the file it occurs in.
type CallRow struct {
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	Import string `json:"import" yaml:"import"`
	Lib    string `json:"lib" yaml:"lib"`
	Line   int    `json:"line" yaml:"line"`
}

// LibraryUsage aggregates call sites per imported library.
type LibraryUsage struct {
	Lib     string   `json:"lib" yaml:"lib"`
	Calls   int      `json:"calls" yaml:"calls"`
	Modules int      `json:"modules" yaml:"modules"`
	APIs    []string `json:"apis" yaml:"apis"`
}
