// Package report writes the run inventory at the end of an analysis.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/toon"
	"github.com/phobologic/apiaudit/internal/usage"
)

// Name is the report plugin's name.
const Name = "report"

// Supported output formats.
const (
	FormatTOON = "toon"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Options configures the report plugin.
type Options struct {
	// Title names the inventory in the output.
	Title  string
	Format string
	// Output is a file path; empty writes to Stdout.
	Output string
	// MaxLibs keeps only the most-called libraries when > 0.
	MaxLibs int
	// Lib keeps only libraries whose specifier contains this substring.
	Lib    string
	Stdout io.Writer
	Logger *slog.Logger
}

// New returns the report plugin.
func New(opts Options) hook.Plugin {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	write := func(_ context.Context, run *model.Run) error {
		inv := usage.Build(run, opts.Title)
		if opts.Lib != "" {
			inv = usage.FilterByLib(inv, opts.Lib)
		}
		inv = usage.SelectLibraries(inv, opts.MaxLibs)

		out, err := Encode(inv, opts.Format)
		if err != nil {
			return err
		}

		if opts.Output == "" {
			_, err = opts.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		opts.Logger.Info("report written",
			slog.String("path", opts.Output),
			slog.String("format", opts.Format),
			slog.Int("calls", len(inv.Calls)))
		return nil
	}

	return hook.Plugin{
		Name:   Name,
		EndTap: hook.Bare(hook.EndTapFunc(write)),
	}
}

// Encode renders inv in the named format. An empty format means TOON.
func Encode(inv *model.Inventory, format string) ([]byte, error) {
	switch format {
	case FormatTOON, "":
		return []byte(toon.Encode(inv) + "\n"), nil
	case FormatJSON:
		out, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		return append(out, '\n'), nil
	case FormatYAML:
		out, err := yaml.Marshal(inv)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
