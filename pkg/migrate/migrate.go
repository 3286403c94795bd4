// Package migrate applies the goose SQL migrations that define the postgres
// schema. The migration files are compiled into every binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// Result is one migration that ran, in either direction.
type Result struct {
	Version   int64
	Path      string
	Direction string
	Duration  time.Duration
}

// Status is one known migration and whether the database has it.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator runs migrations against one database. It never closes db.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator reads migrations from dir, or from the embedded set when dir is
// empty.
func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	fsys, err := migrationFS(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func migrationFS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}

func (m *Migrator) Up(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Up(ctx)
	if err != nil {
		return results(res), fmt.Errorf("goose up: %w", err)
	}
	return results(res), nil
}

// Down rolls back the newest applied migration. Nothing applied is not an
// error.
func (m *Migrator) Down(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Down(ctx)
	switch {
	case errors.Is(err, goose.ErrNoNextVersion):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return results([]*goose.MigrationResult{res}), nil
}

// To moves the schema up or down until target (YYYYMMDDHHMMSS) is the
// current version.
func (m *Migrator) To(ctx context.Context, target string) ([]Result, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case current == version:
		return nil, nil
	case current < version:
		res, err = m.provider.UpTo(ctx, version)
	default:
		res, err = m.provider.DownTo(ctx, version)
	}
	if err != nil {
		return results(res), fmt.Errorf("migrate to %d: %w", version, err)
	}
	return results(res), nil
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	rows, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version:   row.Source.Version,
			Path:      row.Source.Path,
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

func results(res []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(res))
	for _, r := range res {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration,
		})
	}
	return out
}
