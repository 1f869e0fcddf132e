package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()
	if info.DriverName == "" || info.DriverType == "" || info.Package == "" {
		t.Errorf("GetInfo() has empty fields: %+v", info)
	}
	if info.DriverName != DriverName() || info.DriverType != DriverType() || info.IsCGO != IsCGO() {
		t.Errorf("GetInfo() disagrees with accessors: %+v", info)
	}
}

func TestOpenAndWithTx(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE verses (number INTEGER, text TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO verses VALUES (1, 'a')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() commit path: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO verses VALUES (2, 'b')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 (second insert rolled back)", n)
	}
	db.Close()

	ro, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("OpenReadOnly() error: %v", err)
	}
	defer ro.Close()
	if err := ro.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses`).Scan(&n); err != nil || n != 1 {
		t.Errorf("read-only query = %d, %v", n, err)
	}
	if _, err := ro.ExecContext(ctx, `INSERT INTO verses VALUES (3, 'c')`); err == nil {
		t.Error("write through a read-only handle should fail")
	}
}
