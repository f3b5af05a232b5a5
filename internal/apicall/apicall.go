// Package apicall resolves identifier references back to a module's import
// bindings and records the resulting call sites.
package apicall

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
)

// resolver is the walk context for one module.
type resolver struct {
	m       *model.Module
	content []byte
	// byName indexes bindings by table key and by local name. Several
	// bindings may share a name; declaration identity picks between them.
	byName map[string][]*model.ImportBinding
}

// Resolve appends one ApiCall to m.Calls for every identifier that refers to
// an entry of m.Imports. References are matched by declaration identity, so
// locals shadowing an imported name are not reported. Modules without a
// declaration resolver produce no calls.
func Resolve(m *model.Module) {
	if m.Tree == nil || m.Resolver == nil || len(m.Imports) == 0 {
		return
	}

	r := &resolver{
		m:       m,
		content: m.Content,
		byName:  make(map[string][]*model.ImportBinding),
	}
	keys := make([]string, 0, len(m.Imports))
	for k := range m.Imports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b := m.Imports[k]
		r.index(k, b)
		if b.Name != k {
			r.index(b.Name, b)
		}
	}

	r.visit(m.Tree.RootNode())
}

func (r *resolver) index(name string, b *model.ImportBinding) {
	r.byName[name] = append(r.byName[name], b)
}

func (r *resolver) visit(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		r.visit(n.NamedChild(i))
	}
	if n.Type() == "identifier" {
		r.identifier(n)
	}
}

func (r *resolver) identifier(n *sitter.Node) {
	candidates := r.byName[lang.NodeText(n, r.content)]
	if len(candidates) == 0 || !isReference(n) {
		return
	}

	ref := model.SpanOf(n)
	var decl model.Span
	resolved := false
	for _, b := range candidates {
		if b.Ref == ref {
			// The import's own declaration site.
			return
		}
		if !resolved {
			var ok bool
			if decl, ok = r.m.Resolver.ResolveDeclaration(n); !ok {
				return
			}
			resolved = true
		}
		if b.Decl != decl {
			continue
		}
		r.m.Calls = append(r.m.Calls, model.ApiCall{
			Name:   chainName(b.APIName(), n, r.content),
			Ref:    ref,
			Line:   r.m.Line(n.StartPoint().Row),
			Import: b.Name,
			Lib:    b.Lib,
		})
		return
	}
}

// isReference reports whether n names a local binding. The exported name in
// `import { a as b }`, the public name in `export { b as a }`, and both names
// of a re-export `export { a } from 'lib'` refer to another module's exports.
func isReference(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "import_specifier":
		return !(parent.ChildByFieldName("alias") != nil && isField(parent, "name", n))
	case "export_specifier":
		if isField(parent, "alias", n) {
			return false
		}
		return !isReexport(parent)
	}
	return true
}

func isField(parent *sitter.Node, field string, n *sitter.Node) bool {
	c := parent.ChildByFieldName(field)
	return c != nil && sameNode(c, n)
}

// isReexport reports whether an export specifier belongs to
// `export { ... } from 'lib'`.
func isReexport(spec *sitter.Node) bool {
	for n := spec.Parent(); n != nil; n = n.Parent() {
		if n.Type() == "export_statement" {
			return n.ChildByFieldName("source") != nil
		}
	}
	return false
}

// chainName extends base with every property accessed on n, climbing while
// n is the object of a member expression: pkg.sub.call yields
// "pkg.sub.call".
func chainName(base string, n *sitter.Node, content []byte) string {
	name := base
	for {
		parent := n.Parent()
		if parent == nil || parent.Type() != "member_expression" {
			return name
		}
		object := parent.ChildByFieldName("object")
		if object == nil || !sameNode(object, n) {
			return name
		}
		prop := parent.ChildByFieldName("property")
		if prop == nil {
			return name
		}
		name += "." + lang.NodeText(prop, content)
		n = parent
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
