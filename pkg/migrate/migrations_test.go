package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateDir(""); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}

func TestValidateFSRejectsMissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"20260105090000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	err := migrate.ValidateFS(fsys)
	if err == nil || !strings.Contains(err.Error(), "+goose Down") {
		t.Fatalf("expected missing down marker, got %v", err)
	}
}

func TestValidateFSRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	fsys := fstest.MapFS{
		"20260105090000_a.sql": {Data: body},
		"20260105090000_b.sql": {Data: body},
	}
	if err := migrate.ValidateFS(fsys); err == nil {
		t.Fatalf("expected duplicate version to fail")
	}
}

func TestTimeEntriesMigrationHasActiveTimerIndex(t *testing.T) {
	content := readMigration(t, "*_create_time_entries.sql")
	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_time_entries_active_timer",
		"WHERE end_time IS NULL",
		"CHECK (duration_minutes >= 0)",
		"DROP TABLE IF EXISTS time_entries",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationGuardsQuantity(t *testing.T) {
	content := readMigration(t, "*_create_inventory_items.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS inventory_items",
		"CHECK (quantity >= 0)",
		"ux_inventory_items_sku",
		"DROP TABLE IF EXISTS inventory_items",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvoicesMigrationGuardsDuplicates(t *testing.T) {
	content := readMigration(t, "*_create_invoices.sql")
	for _, sub := range []string{
		"ux_invoices_active_work_order",
		"WHERE work_order_id IS NOT NULL AND status <> 'cancelled'",
		"CHECK (total_cents = subtotal_cents + tax_cents)",
		"fk_work_orders_invoice",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Bay Numbers!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_bay_numbers.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename to fail validation")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestNewMigratorRequiresDB(t *testing.T) {
	if _, err := migrate.NewMigrator(nil, ""); err == nil {
		t.Fatal("expected nil db to fail")
	}
}
