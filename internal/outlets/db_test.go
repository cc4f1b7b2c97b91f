package outlets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "outlets.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBSeed(t *testing.T) {
	db := openTestDB(t)

	rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM outlets")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n, ok := rows[0]["n"].(int64); !ok || n != 8 {
		t.Fatalf("seeded outlets = %v, want 8", rows[0]["n"])
	}
}

func TestDBSeedIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outlets.db")
	for i := 0; i < 2; i++ {
		db, err := OpenDB(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM outlets")
		db.Close()
		if err != nil {
			t.Fatalf("count %d: %v", i, err)
		}
		if n := rows[0]["n"].(int64); n != 8 {
			t.Fatalf("open %d: outlets = %d, want 8", i, n)
		}
	}
}

func TestDBQueryFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows, err := db.Query(ctx, "SELECT name FROM outlets WHERE has_drive_thru = 1 ORDER BY name")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("drive-thru outlets = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "Kopi SS15 Subang" || rows[1]["name"] != "Kopi Setia Alam Drive Thru" {
		t.Errorf("rows = %v", rows)
	}

	rows, err = db.Query(ctx, "SELECT name FROM outlets WHERE is_24_hours = 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Kopi Setia Alam Drive Thru" {
		t.Errorf("24h rows = %v", rows)
	}
}

func TestDBQueryRejectsUnsafeSQL(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Query(context.Background(), "DROP TABLE outlets")
	if !errors.Is(err, ErrUnsafeSQL) {
		t.Fatalf("got %v, want ErrUnsafeSQL", err)
	}

	// The table must still be intact.
	rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM outlets")
	if err != nil {
		t.Fatalf("count after rejected query: %v", err)
	}
	if n := rows[0]["n"].(int64); n != 8 {
		t.Fatalf("outlets = %d, want 8", n)
	}
}
