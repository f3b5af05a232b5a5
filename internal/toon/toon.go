// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/apiaudit/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts an Inventory into TOON format.
func Encode(inv *model.Inventory) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("inventory: %s", encodeValue(inv.Name)))

	var libRows [][]string
	for i := range inv.Libraries {
		l := &inv.Libraries[i]
		libRows = append(libRows, []string{
			l.Lib,
			strconv.Itoa(l.Calls),
			strconv.Itoa(l.Modules),
			strings.Join(l.APIs, " "),
		})
	}
	parts = append(parts, formatTabular("libraries", []string{"lib", "calls", "modules", "apis"}, libRows))

	var moduleRows [][]string
	for i := range inv.Modules {
		m := &inv.Modules[i]
		moduleRows = append(moduleRows, []string{
			m.Source,
			m.Path,
			strconv.Itoa(m.LineBase),
			strconv.Itoa(m.Imports),
			strconv.Itoa(m.Calls),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"source", "path", "line_base", "imports", "calls"}, moduleRows))

	parts = append(parts, formatTabular("imports", []string{"path", "line", "name", "origin", "lib"}, importRows(inv.Imports)))

	if len(inv.DynamicImports) > 0 {
		parts = append(parts, formatTabular("dynamic_imports", []string{"path", "line", "name", "origin", "lib"}, importRows(inv.DynamicImports)))
	}

	var callRows [][]string
	for i := range inv.Calls {
		c := &inv.Calls[i]
		callRows = append(callRows, []string{
			c.Path,
			strconv.Itoa(c.Line),
			c.Name,
			c.Import,
			c.Lib,
		})
	}
	parts = append(parts, formatTabular("calls", []string{"path", "line", "name", "import", "lib"}, callRows))

	return strings.Join(parts, "\n")
}

func importRows(rows []model.ImportRow) [][]string {
	var out [][]string
	for i := range rows {
		r := &rows[i]
		out = append(out, []string{
			r.Path,
			strconv.Itoa(r.Line),
			r.Name,
			r.Origin,
			r.Lib,
		})
	}
	return out
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
