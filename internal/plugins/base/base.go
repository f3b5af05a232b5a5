// Package base provides the baseline extension: directory scanning and
// script parsing for every registered script language.
package base

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phobologic/apiaudit/internal/discover"
	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/lang"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/parse"
)

// Name is the baseline plugin's name.
const Name = "base"

// Options configures the baseline plugin.
type Options struct {
	// MaxFileSize skips larger files when > 0.
	MaxFileSize int64
	SkipTests   bool
	Logger      *slog.Logger
}

// New returns the baseline plugin. Both hooks are tagged post so that other
// extensions get the first chance at every file.
func New(opts Options) hook.Plugin {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exts := lang.ScriptExtensions()

	scan := func(ctx context.Context, roots []string) ([]string, error) {
		var paths []string
		for _, root := range roots {
			found, err := discover.Files(ctx, root, discover.Options{Extensions: exts, SkipTests: opts.SkipTests})
			if err != nil {
				return nil, fmt.Errorf("scanning root %s: %w", root, err)
			}
			paths = append(paths, found...)
		}
		return paths, nil
	}

	parseFile := func(path string) ([]model.Unit, error) {
		return parse.File(context.Background(), logger, path, opts.MaxFileSize)
	}

	return hook.Plugin{
		Name:      Name,
		ScanFiles: hook.Ordered(hook.ScanFilesFunc(scan), hook.Post),
		Parse:     hook.Ordered(hook.ParseFunc(parseFile), hook.Post),
	}
}
