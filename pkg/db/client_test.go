package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Listing{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func listingRow(seller string) *models.Listing {
	return &models.Listing{
		AssetKind: enums.AssetKindUnique,
		TokenID:   1,
		Quantity:  1,
		Seller:    types.Address("trader:" + seller),
		Mode:      enums.ListingModeFixedPrice,
		State:     enums.ListingStateListed,
	}
}

func countListings(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Listing{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func TestWithTxCommits(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(listingRow("alice")).Error
	})
	if err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}
	if got := countListings(t, db); got != 1 {
		t.Fatalf("expected 1 row after commit, got %d", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(listingRow("bob")).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to surface the callback error")
	}
	if got := countListings(t, db); got != 0 {
		t.Fatalf("expected rollback to drop the row, got %d", got)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
