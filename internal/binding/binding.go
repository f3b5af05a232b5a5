// Package binding records the names a module imports.
package binding

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/scope"
)

// walker carries the module being filled through one traversal.
type walker struct {
	m       *model.Module
	content []byte
}

// Extract fills m.Imports and m.DynamicImports from m's syntax tree.
// Children are visited before their parent, so dynamic imports nested in
// any construct are found. A key declared twice keeps the later binding.
func Extract(m *model.Module) {
	if m.Tree == nil {
		return
	}
	w := &walker{m: m, content: m.Content}
	w.visit(m.Tree.RootNode())
}

func (w *walker) visit(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}

	switch n.Type() {
	case "import_statement":
		w.importStatement(n)
	case "call_expression":
		w.dynamicImport(n)
	case "variable_declarator":
		w.require(n)
	}
}

func (w *walker) importStatement(n *sitter.Node) {
	if scope.IsTypeOnly(n) {
		return
	}
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	lib := lang.StringValue(source, w.content)
	line := w.m.Line(n.StartPoint().Row)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		scope.EachImport(clause, func(local, decl *sitter.Node) {
			b := &model.ImportBinding{
				Name: lang.NodeText(local, w.content),
				Decl: model.SpanOf(decl),
				Ref:  model.SpanOf(local),
				Line: line,
				Lib:  lib,
			}
			key := b.Name
			switch decl.Type() {
			case "namespace_import":
				b.Origin = model.NamespaceOrigin
			case "import_specifier":
				if decl.ChildByFieldName("alias") != nil {
					key = lang.StringValue(decl.ChildByFieldName("name"), w.content)
					b.Origin = key
				}
			}
			w.m.Imports[key] = b
		})
	}
}

// dynamicImport records import('lib'). Specifiers that are not plain
// string literals cannot be inventoried and are ignored.
func (w *walker) dynamicImport(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "import" {
		return
	}
	arg := firstArgument(n)
	if arg == nil || arg.Type() != "string" {
		return
	}
	lib := lang.StringValue(arg, w.content)
	w.m.DynamicImports[lib] = &model.ImportBinding{
		Name: lib,
		Decl: model.SpanOf(arg),
		Ref:  model.SpanOf(arg),
		Line: w.m.Line(n.StartPoint().Row),
		Lib:  lib,
	}
}

// require records a top-level `const x = require('lib')` as a default-style
// binding anchored at the declared identifier.
func (w *walker) require(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "identifier" || value.Type() != "call_expression" {
		return
	}
	if !topLevel(n) {
		return
	}
	fn := value.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || lang.NodeText(fn, w.content) != "require" {
		return
	}
	arg := firstArgument(value)
	if arg == nil || arg.Type() != "string" {
		return
	}

	local := lang.NodeText(name, w.content)
	w.m.Imports[local] = &model.ImportBinding{
		Name: local,
		Decl: model.SpanOf(name),
		Ref:  model.SpanOf(name),
		Line: w.m.Line(n.StartPoint().Row),
		Lib:  lang.StringValue(arg, w.content),
	}
}

func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	return args.NamedChild(0)
}

// topLevel reports whether a declarator belongs to a declaration directly in
// the program body, possibly behind an export.
func topLevel(declarator *sitter.Node) bool {
	decl := declarator.Parent()
	if decl == nil {
		return false
	}
	parent := decl.Parent()
	if parent != nil && parent.Type() == "export_statement" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "program"
}
