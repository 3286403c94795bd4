package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <YYYYMMDDHHMMSS>_<slug>.sql into dir and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, time.Now().UTC().Format("20060102150405")+"_"+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, migrationTemplate, slug); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// ValidateDir checks a migrations directory on disk. An empty dir validates
// the set embedded in the binary.
func ValidateDir(dir string) error {
	fsys, err := migrationFS(dir)
	if err != nil {
		return err
	}
	return ValidateFS(fsys)
}

// ValidateFS enforces unique timestamped filenames and goose Up/Down markers
// on every .sql file at the root of fsys.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
	}
	if len(versions) == 0 {
		return fmt.Errorf("no migrations found")
	}
	return nil
}
