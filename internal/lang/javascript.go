package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
)

func init() {
	// The javascript grammar parses JSX natively.
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
	}
}
