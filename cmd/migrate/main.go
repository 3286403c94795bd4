package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
)

type dbCommand func(m *migrate.Migrator, ctx context.Context) ([]migrate.Result, error)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "goose migrations directory; empty uses the embedded set")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		fail(context.Background(), logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// file commands never touch the database
	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "create", fmt.Errorf("missing -name"))
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			fail(ctx, logg, "create", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(ctx, logg, "validate", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	commands := map[string]dbCommand{
		"up":   (*migrate.Migrator).Up,
		"down": (*migrate.Migrator).Down,
		"version": func(m *migrate.Migrator, ctx context.Context) ([]migrate.Result, error) {
			if *version == "" {
				return nil, fmt.Errorf("missing -version")
			}
			return m.To(ctx, *version)
		},
		"status": printStatus,
	}
	run, ok := commands[*cmd]
	if !ok {
		fail(ctx, logg, "parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
	if cfg.DB.Driver == config.DriverSQLite {
		fail(ctx, logg, "open database", fmt.Errorf("goose migrations target postgres; sqlite builds its schema on startup"))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "open database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		fail(ctx, logg, "open database", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, *dir)
	if err != nil {
		fail(ctx, logg, "load migrations", err)
	}

	results, err := run(migrator, ctx)
	for _, r := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     r.Version,
			"file":        filepath.Base(r.Path),
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		fail(ctx, logg, *cmd, err)
	}
	logg.Info(logg.WithField(ctx, "count", len(results)), "migrations finished")
}

// printStatus writes one line per migration and applies nothing.
func printStatus(m *migrate.Migrator, ctx context.Context) ([]migrate.Result, error) {
	rows, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		state := "pending"
		if row.Applied {
			state = "applied " + row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Printf("%d  %-45s %s\n", row.Version, filepath.Base(row.Path), state)
	}
	return nil, nil
}

func fail(ctx context.Context, logg *logger.Logger, step string, err error) {
	logg.Error(ctx, fmt.Sprintf("migrate %s failed", step), err)
	os.Exit(1)
}
