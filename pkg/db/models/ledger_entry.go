package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// LedgerEntry records one immutable money movement. The full entry history is
// the source of truth for the conservation check: deposits minus withdrawals
// must always equal credits plus escrow.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	Address     types.Address         `gorm:"column:address;type:text;not null;index:ix_ledger_entries_address"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	ListingID   *int64                `gorm:"column:listing_id;index:ix_ledger_entries_listing"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
