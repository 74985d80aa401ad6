package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestStockRecordsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_stock_records"), []string{
		"CREATE TABLE IF NOT EXISTS stock_records",
		"PRIMARY KEY (item_id, location_id)",
		"FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE",
		"FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE",
		"CHECK (quantity >= 0)",
		"CHECK (reserved_quantity >= 0)",
		"version bigint NOT NULL DEFAULT 0",
		"ux_stock_records_location_external",
		"DROP TABLE IF EXISTS stock_records",
	})
}

func TestLocationsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_locations"), []string{
		"CREATE TABLE IF NOT EXISTS locations",
		"CHECK (pos_provider IN ('none', 'square', 'rest'))",
		"CHECK ((latitude IS NULL) = (longitude IS NULL))",
		"DROP TABLE IF EXISTS locations",
	})
}

func TestStockMovementsMigrationReferencesRecords(t *testing.T) {
	assertContains(t, readMigration(t, "create_stock_movements"), []string{
		"REFERENCES stock_records(item_id, location_id) ON DELETE CASCADE",
		"ix_stock_movements_key",
	})
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.Validate(os.DirFS("migrations")); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedSourceMatchesDisk(t *testing.T) {
	src, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	embedded, err := fs.Glob(src, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(embedded))
	}
	if err := migrate.Validate(src); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestNewMigrationFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := migrate.NewMigrationFile(dir, "Add Reorder Alerts!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260304050607_add_reorder_alerts.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.NewMigrationFile(dir, "add reorder alerts", now); err == nil {
		t.Fatal("expected an error when the file already exists")
	}
	if _, err := migrate.NewMigrationFile(dir, "!!!", now); err == nil {
		t.Fatal("expected an error for an empty slug")
	}
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	if err := migrate.Validate(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestValidateRequiresDownSection(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	if err := migrate.Validate(fsys); err == nil {
		t.Fatal("expected missing down error")
	}
}
