package lang

import (
	"github.com/smacker/go-tree-sitter/html"
)

func init() {
	// Vue single-file components are close enough to HTML for block
	// extraction; the script blocks are re-parsed with a script grammar.
	Languages["vue"] = &Language{
		Name:       "vue",
		Extensions: []string{".vue"},
		lang:       html.GetLanguage(),
		Container:  true,
	}
}

// ForScriptLang maps a <script lang="..."> attribute to a registered script language.
func ForScriptLang(attr string) *Language {
	switch attr {
	case "ts", "typescript":
		return Languages["typescript"]
	case "tsx":
		return Languages["tsx"]
	default:
		return Languages["javascript"]
	}
}
