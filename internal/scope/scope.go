// Package scope builds a lexical scope table for a JavaScript or TypeScript
// syntax tree and resolves identifier occurrences to their declarations.
package scope

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
)

var functionScopes = map[string]struct{}{
	"program":                        {},
	"function_declaration":           {},
	"function_expression":            {},
	"function":                       {},
	"generator_function_declaration": {},
	"generator_function":             {},
	"arrow_function":                 {},
	"method_definition":              {},
}

var blockScopes = map[string]struct{}{
	"statement_block":  {},
	"for_statement":    {},
	"for_in_statement": {},
	"catch_clause":     {},
	"switch_body":      {},
	"class_body":       {},
	"class":            {},
}

// key identifies a scope node. Pointer identity is not stable across
// separate lookups of the same node, so type and span are used instead.
type key struct {
	typ        string
	start, end uint32
}

func keyOf(n *sitter.Node) key {
	return key{typ: n.Type(), start: n.StartByte(), end: n.EndByte()}
}

// Resolver maps identifiers to the span of their declaring binding.
type Resolver struct {
	content []byte
	scopes  map[key]map[string]model.Span
}

// New walks root once and records every declaration it introduces.
func New(root *sitter.Node, content []byte) *Resolver {
	r := &Resolver{
		content: content,
		scopes:  make(map[key]map[string]model.Span),
	}
	if root != nil {
		r.walk(root)
	}
	return r
}

// ResolveDeclaration climbs from ident to the first scope that declares its
// name. ok is false for names that are never declared in the tree.
func (r *Resolver) ResolveDeclaration(ident *sitter.Node) (model.Span, bool) {
	name := lang.NodeText(ident, r.content)
	for n := ident.Parent(); n != nil; n = n.Parent() {
		if !isScope(n.Type()) {
			continue
		}
		if decl, ok := r.scopes[keyOf(n)][name]; ok {
			return decl, true
		}
	}
	return model.Span{}, false
}

func isScope(typ string) bool {
	if _, ok := functionScopes[typ]; ok {
		return true
	}
	_, ok := blockScopes[typ]
	return ok
}

func (r *Resolver) declare(scope *sitter.Node, name string, decl model.Span) {
	if scope == nil || name == "" {
		return
	}
	k := keyOf(scope)
	names := r.scopes[k]
	if names == nil {
		names = make(map[string]model.Span)
		r.scopes[k] = names
	}
	names[name] = decl
}

// bindPattern declares every identifier inside a binding pattern, each
// anchored at its own span.
func (r *Resolver) bindPattern(scope, pattern *sitter.Node) {
	eachBoundName(pattern, func(id *sitter.Node) {
		r.declare(scope, lang.NodeText(id, r.content), model.SpanOf(id))
	})
}

func (r *Resolver) walk(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		r.declareImport(n)
	case "variable_declarator":
		r.declareVariable(n)
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			r.declare(enclosingBlock(n.Parent()), lang.NodeText(name, r.content), model.SpanOf(name))
		}
	case "function_expression", "function", "generator_function", "class":
		if name := n.ChildByFieldName("name"); name != nil {
			r.declare(n, lang.NodeText(name, r.content), model.SpanOf(name))
		}
	case "formal_parameters":
		if fn := n.Parent(); fn != nil {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				r.bindPattern(fn, n.NamedChild(i))
			}
		}
	case "arrow_function":
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.bindPattern(n, p)
		}
	case "catch_clause":
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.bindPattern(n, p)
		}
	case "for_in_statement":
		r.declareForIn(n)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		r.walk(n.NamedChild(i))
	}
}

func (r *Resolver) declareVariable(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	decl := n.Parent()
	if name == nil || decl == nil {
		return
	}
	switch decl.Type() {
	case "variable_declaration":
		r.bindPattern(enclosingFunction(decl), name)
	case "lexical_declaration":
		r.bindPattern(enclosingBlock(decl), name)
	}
}

func (r *Resolver) declareForIn(n *sitter.Node) {
	kind := n.ChildByFieldName("kind")
	left := n.ChildByFieldName("left")
	if kind == nil || left == nil {
		return
	}
	if lang.NodeText(kind, r.content) == "var" {
		r.bindPattern(enclosingFunction(n.Parent()), left)
		return
	}
	r.bindPattern(n, left)
}

// declareImport binds import names in the program scope. Declaration spans
// follow the same convention as the binding extractor: the import clause
// for a default import, the specifier for a named import, and the
// namespace_import node for a namespace import.
func (r *Resolver) declareImport(n *sitter.Node) {
	program := enclosingFunction(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		EachImport(clause, func(local, decl *sitter.Node) {
			r.declare(program, lang.NodeText(local, r.content), model.SpanOf(decl))
		})
	}
}

// EachImport calls fn for every local name an import clause introduces,
// together with the node whose span anchors the declaration. Type-only
// specifiers are skipped.
func EachImport(clause *sitter.Node, fn func(local, decl *sitter.Node)) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			fn(child, clause)
		case "namespace_import":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if id := child.NamedChild(j); id.Type() == "identifier" {
					fn(id, child)
				}
			}
		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "import_specifier" || IsTypeOnly(spec) {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if local != nil {
					fn(local, spec)
				}
			}
		}
	}
}

// IsTypeOnly reports whether an import statement or specifier carries the
// TypeScript "type" modifier.
func IsTypeOnly(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == "type" {
			return true
		}
	}
	return false
}

func enclosingFunction(n *sitter.Node) *sitter.Node {
	for ; n != nil; n = n.Parent() {
		if _, ok := functionScopes[n.Type()]; ok {
			return n
		}
	}
	return nil
}

func enclosingBlock(n *sitter.Node) *sitter.Node {
	for ; n != nil; n = n.Parent() {
		if isScope(n.Type()) {
			return n
		}
	}
	return nil
}

// eachBoundName visits the identifiers a binding pattern introduces.
func eachBoundName(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		fn(n)
	case "pair_pattern":
		eachBoundName(n.ChildByFieldName("value"), fn)
	case "assignment_pattern", "object_assignment_pattern":
		eachBoundName(n.ChildByFieldName("left"), fn)
	case "required_parameter", "optional_parameter":
		eachBoundName(n.ChildByFieldName("pattern"), fn)
	case "object_pattern", "array_pattern", "rest_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			eachBoundName(n.NamedChild(i), fn)
		}
	}
}
