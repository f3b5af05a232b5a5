// Package store persists run inventories to a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/phobologic/apiaudit/internal/hook"
	"github.com/phobologic/apiaudit/internal/model"
	"github.com/phobologic/apiaudit/internal/usage"
)

// Name is the store plugin's name.
const Name = "sqlite"

const schema = `
	DROP TABLE IF EXISTS modules;
	DROP TABLE IF EXISTS imports;
	DROP TABLE IF EXISTS calls;
	DROP TABLE IF EXISTS libraries;

	CREATE TABLE modules (
		source TEXT NOT NULL,
		path TEXT NOT NULL,
		line_base INTEGER NOT NULL,
		imports INTEGER NOT NULL,
		calls INTEGER NOT NULL
	);
	CREATE TABLE imports (
		path TEXT NOT NULL,
		line INTEGER NOT NULL,
		name TEXT NOT NULL,
		origin TEXT,
		lib TEXT NOT NULL,
		dynamic INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_imports_lib ON imports(lib);
	CREATE TABLE calls (
		path TEXT NOT NULL,
		line INTEGER NOT NULL,
		name TEXT NOT NULL,
		import TEXT NOT NULL,
		lib TEXT NOT NULL
	);
	CREATE INDEX idx_calls_lib ON calls(lib);
	CREATE TABLE libraries (
		lib TEXT PRIMARY KEY,
		calls INTEGER NOT NULL,
		modules INTEGER NOT NULL,
		apis TEXT NOT NULL
	);
`

// Options configures the store plugin.
type Options struct {
	Path   string
	Title  string
	Logger *slog.Logger
}

// New returns the store plugin. Each run replaces the inventory tables.
func New(opts Options) hook.Plugin {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	write := func(ctx context.Context, run *model.Run) error {
		inv := usage.Build(run, opts.Title)
		if err := Write(ctx, opts.Path, inv); err != nil {
			return err
		}
		opts.Logger.Info("inventory stored",
			slog.String("path", opts.Path),
			slog.Int("modules", len(inv.Modules)),
			slog.Int("calls", len(inv.Calls)))
		return nil
	}
	return hook.Plugin{
		Name:   Name,
		EndTap: hook.Bare(hook.EndTapFunc(write)),
	}
}

// Write stores inv at path in a single transaction.
func Write(ctx context.Context, path string, inv *model.Inventory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set pragma: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	for _, m := range inv.Modules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO modules (source, path, line_base, imports, calls) VALUES (?, ?, ?, ?, ?)`,
			m.Source, m.Path, m.LineBase, m.Imports, m.Calls); err != nil {
			return fmt.Errorf("failed to insert module: %w", err)
		}
	}
	if err := insertImports(ctx, tx, inv.Imports, false); err != nil {
		return err
	}
	if err := insertImports(ctx, tx, inv.DynamicImports, true); err != nil {
		return err
	}
	for _, c := range inv.Calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO calls (path, line, name, import, lib) VALUES (?, ?, ?, ?, ?)`,
			c.Path, c.Line, c.Name, c.Import, c.Lib); err != nil {
			return fmt.Errorf("failed to insert call: %w", err)
		}
	}
	for _, l := range inv.Libraries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO libraries (lib, calls, modules, apis) VALUES (?, ?, ?, ?)`,
			l.Lib, l.Calls, l.Modules, strings.Join(l.APIs, " ")); err != nil {
			return fmt.Errorf("failed to insert library: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory: %w", err)
	}
	return nil
}

func insertImports(ctx context.Context, tx *sql.Tx, rows []model.ImportRow, dynamic bool) error {
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO imports (path, line, name, origin, lib, dynamic) VALUES (?, ?, ?, ?, ?, ?)`,
			r.Path, r.Line, r.Name, nullString(r.Origin), r.Lib, dynamic); err != nil {
			return fmt.Errorf("failed to insert import: %w", err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
