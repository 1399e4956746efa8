package models

import (
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Credit is the withdrawable balance owed to an address, accumulated from
// refunds, sale proceeds, and commission.
type Credit struct {
	Address      types.Address `gorm:"column:address;type:text;primaryKey"`
	BalanceCents int64         `gorm:"column:balance_cents;not null;default:0"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
