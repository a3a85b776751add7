package database

import (
	"testing"

	"github.com/mediashelf/mediashelf/internal/config"
)

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}

	lite := &DB{driver: DriverSQLite}
	if q := "SELECT ?"; lite.rebind(q) != q {
		t.Errorf("sqlite rebind changed the query: %q", lite.rebind(q))
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: DriverPostgres}); err == nil {
		t.Error("expected error for missing DSN")
	}
}

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: DriverSQLite, Path: t.TempDir() + "/mediashelf.db"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}
