// Package vue extracts the <script> blocks of Vue single-file components as
// separate analysis units.
package vue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/apiaudit/internal/discover"
	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/parse"
)

// Name is the Vue plugin's name.
const Name = "vue"

// Options configures the Vue plugin.
type Options struct {
	SkipTests bool
	Logger    *slog.Logger
}

// block is one <script> element's body.
type block struct {
	lang     string
	content  []byte
	lineBase int
}

// New returns the Vue plugin. Its hooks are tagged pre so .vue files are
// claimed before the baseline parser sees them.
func New(opts Options) hook.Plugin {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	container := lang.Languages["vue"]

	scan := func(ctx context.Context, roots []string) ([]string, error) {
		var paths []string
		for _, root := range roots {
			found, err := discover.Files(ctx, root, discover.Options{Extensions: container.Extensions, SkipTests: opts.SkipTests})
			if err != nil {
				return nil, fmt.Errorf("scanning root %s: %w", root, err)
			}
			paths = append(paths, found...)
		}
		return paths, nil
	}

	parseFile := func(path string) ([]model.Unit, error) {
		if lang.ForExtension(filepath.Ext(path)) != container.Name {
			return nil, nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		blocks, err := scriptBlocks(container, content)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		// A component without script blocks is still claimed.
		units := make([]model.Unit, 0, len(blocks))
		for _, b := range blocks {
			u, err := parse.Source(context.Background(), lang.ForScriptLang(b.lang), b.content, b.lineBase)
			if err != nil {
				return nil, fmt.Errorf("parsing script in %s: %w", path, err)
			}
			units = append(units, u)
		}
		logger.Debug("vue component parsed",
			slog.String("path", path),
			slog.Int("blocks", len(blocks)))
		return units, nil
	}

	return hook.Plugin{
		Name:      Name,
		ScanFiles: hook.Ordered(hook.ScanFilesFunc(scan), hook.Pre),
		Parse:     hook.Ordered(hook.ParseFunc(parseFile), hook.Pre),
	}
}

// scriptBlocks returns the body of every top-level <script> element. Each
// body's resolver only sees that block, so names shared between a component's
// <script> and <script setup> are not linked.
func scriptBlocks(container *lang.Language, content []byte) ([]block, error) {
	parser := container.NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var blocks []block
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		el := root.NamedChild(i)
		if el.Type() != "script_element" {
			continue
		}
		var attr string
		var raw *sitter.Node
		for j := 0; j < int(el.NamedChildCount()); j++ {
			switch c := el.NamedChild(j); c.Type() {
			case "start_tag":
				attr = langAttribute(c, content)
			case "raw_text":
				raw = c
			}
		}
		if raw == nil {
			continue
		}
		body := make([]byte, raw.EndByte()-raw.StartByte())
		copy(body, content[raw.StartByte():raw.EndByte()])
		blocks = append(blocks, block{
			lang:     attr,
			content:  body,
			lineBase: int(raw.StartPoint().Row),
		})
	}
	return blocks, nil
}

// langAttribute returns the value of a start tag's lang attribute, or "".
func langAttribute(tag *sitter.Node, content []byte) string {
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		a := tag.NamedChild(i)
		if a.Type() != "attribute" || a.NamedChildCount() < 2 {
			continue
		}
		if lang.NodeText(a.NamedChild(0), content) != "lang" {
			continue
		}
		return strings.ToLower(lang.StringValue(a.NamedChild(1), content))
	}
	return ""
}
