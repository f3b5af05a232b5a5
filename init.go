package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/apiaudit/internal/config"
	"github.com/phobologic/apiaudit/internal/model"
)

const (
	sentinelStart = "# apiaudit:start"
	sentinelEnd   = "# apiaudit:end"
)

// newInitCmd implements `apiaudit init`, which writes a starter config and
// keeps the generated artifacts out of git.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter " + config.FileName + " and ignore generated files",
		Long: `Write a starter ` + config.FileName + ` into dir (default: the current
directory) with a single entry scanning that directory. An existing config is
left alone unless --force is given.

The SQLite database and metrics textfile paths are added to dir/.gitignore
inside sentinel comments, so later runs update the block in place without
touching surrounding content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, dryRun, force, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runInit(dir string, dryRun, force bool, stdout, stderr io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	cfg := starterConfig(filepath.Base(abs))
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	ignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", ignorePath, err)
	}
	ignored := applySection(string(existing), generateSection(cfg))

	if dryRun {
		_, _ = fmt.Fprintf(stdout, "# %s\n%s\n# .gitignore\n%s", config.FileName, data, ignored)
		return nil
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "%s exists, leaving it unchanged (use --force to overwrite)\n", cfgPath)
	} else {
		if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfgPath, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote %s\n", cfgPath)
	}

	if err := os.WriteFile(ignorePath, []byte(ignored), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	_, _ = fmt.Fprintf(stderr, "updated apiaudit section in %s\n", ignorePath)
	return nil
}

func starterConfig(name string) *config.Config {
	cfg := config.Default()
	cfg.Entries = []model.Entry{{Name: name, Roots: []string{"."}}}
	cfg.SkipTests = true
	return cfg
}

// generateSection returns the sentinel-wrapped ignore rules for the files
// apiaudit writes.
func generateSection(cfg *config.Config) string {
	lines := []string{sentinelStart}
	for _, p := range []string{cfg.SQLite.Path, cfg.Metrics.File, cfg.Report.Output} {
		if p != "" {
			lines = append(lines, "/"+filepath.ToSlash(p))
		}
	}
	lines = append(lines, sentinelEnd)
	return strings.Join(lines, "\n")
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) == 0 {
		return section + "\n"
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
