// Package parse turns JavaScript and TypeScript sources into analysis units
// using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/scope"
)

// Source parses content with a fresh parser for l and attaches a scope
// resolver. lineBase is the zero-based row of content within its file.
func Source(ctx context.Context, l *lang.Language, content []byte, lineBase int) (model.Unit, error) {
	if err := ctx.Err(); err != nil {
		return model.Unit{}, fmt.Errorf("parse canceled before start: %w", err)
	}

	parser := l.NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return model.Unit{}, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	return model.Unit{
		Tree:     tree,
		Content:  content,
		Resolver: scope.New(tree.RootNode(), content),
		LineBase: lineBase,
	}, nil
}

// File reads and parses a script file. It returns nil without error for
// container formats, unsupported extensions, and files larger than maxSize
// (when maxSize > 0); oversized files are logged.
func File(ctx context.Context, logger *slog.Logger, path string, maxSize int64) ([]model.Unit, error) {
	l := lang.Languages[lang.ForExtension(filepath.Ext(path))]
	if l == nil || l.Container {
		return nil, nil
	}

	if maxSize > 0 {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if fi.Size() > maxSize {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("file skipped",
				slog.String("path", path),
				slog.Int64("size", fi.Size()),
				slog.Int64("max_size", maxSize))
			return nil, nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	u, err := Source(ctx, l, content, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return []model.Unit{u}, nil
}
