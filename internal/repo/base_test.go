package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	if base := NewBase(db); base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDBBindsContext(t *testing.T) {
	base := NewBase(newTestDB(t))

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx == nil || withCtx.Statement == nil {
		t.Fatalf("expected session with statement after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}
}

func TestBaseDBNilContextReturnsRawConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestWithUpdateLockSkipsSQLite(t *testing.T) {
	db := newTestDB(t)
	if locked := WithUpdateLock(db); locked != db {
		t.Fatalf("expected sqlite connection to pass through unchanged")
	}
	if WithUpdateLock(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}
