// Package model defines core data structures for apiaudit.
package model

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Span is a half-open byte range within a unit's content.
type Span struct {
	Start uint32 `json:"start" yaml:"start"`
	End   uint32 `json:"end" yaml:"end"`
}

// SpanOf returns the byte span covered by node.
func SpanOf(node *sitter.Node) Span {
	return Span{Start: node.StartByte(), End: node.EndByte()}
}

// DeclarationResolver maps an identifier occurrence to the span of the
// declaration it refers to. ok is false when the name is not declared
// anywhere in the unit (globals, ambient names).
type DeclarationResolver interface {
	ResolveDeclaration(ident *sitter.Node) (decl Span, ok bool)
}

// Unit is one parsed compilation unit handed back by a parser adapter.
// LineBase is the zero-based row in the original file where Content starts.
type Unit struct {
	Tree     *sitter.Tree
	Content  []byte
	Resolver DeclarationResolver
	LineBase int
}

// Entry is one requested analysis target.
type Entry struct {
	Name  string   `mapstructure:"name" yaml:"name" validate:"required"`
	Roots []string `mapstructure:"roots" yaml:"roots" validate:"min=1,dive,required"`
}

// Source is an entry with its resolved file list.
type Source struct {
	Name  string
	Paths []string
}

// ImportBinding is a name introduced into a module by an import.
// Origin is empty for default and plain named imports, the exported name
// for aliased named imports, and "*" for namespace imports.
type ImportBinding struct {
	Name   string `json:"name" yaml:"name"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Decl   Span   `json:"decl" yaml:"decl"`
	Ref    Span   `json:"ref" yaml:"ref"`
	Line   int    `json:"line" yaml:"line"`
	Lib    string `json:"lib" yaml:"lib"`
}

// NamespaceOrigin marks a namespace import binding.
const NamespaceOrigin = "*"

// APIName returns the name call sites of this binding are reported under.
func (b *ImportBinding) APIName() string {
	if b.Origin != "" && b.Origin != NamespaceOrigin {
		return b.Origin
	}
	return b.Name
}

// ApiCall is one call-site fact.
type ApiCall struct {
	Name   string `json:"name" yaml:"name"`
	Ref    Span   `json:"ref" yaml:"ref"`
	Line   int    `json:"line" yaml:"line"`
	Import string `json:"import" yaml:"import"`
	Lib    string `json:"lib" yaml:"lib"`
}

// Module is one analyzed compilation unit. A single file may produce
// several modules sharing the same Path.
type Module struct {
	ID             string
	Source         string
	Path           string
	LineBase       int
	Tree           *sitter.Tree
	Content        []byte
	Resolver       DeclarationResolver
	Imports        map[string]*ImportBinding
	DynamicImports map[string]*ImportBinding
	Calls          []ApiCall
}

// NewModule wraps a parsed unit in an empty module record.
func NewModule(id, source, path string, u Unit) *Module {
	return &Module{
		ID:             id,
		Source:         source,
		Path:           path,
		LineBase:       u.LineBase,
		Tree:           u.Tree,
		Content:        u.Content,
		Resolver:       u.Resolver,
		Imports:        make(map[string]*ImportBinding),
		DynamicImports: make(map[string]*ImportBinding),
	}
}

// Line converts a zero-based row within the module to a 1-based file line.
func (m *Module) Line(row uint32) int {
	return int(row) + m.LineBase + 1
}

// HookFailure records one extension handler that failed during dispatch.
type HookFailure struct {
	Kind   string
	Plugin string
	Err    error
}

// Run is the aggregate of one analysis invocation.
type Run struct {
	Sources  []Source
	Modules  []*Module
	Failures []HookFailure
}
