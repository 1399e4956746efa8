package enums

import "fmt"

// LedgerEntryType classifies every money movement the engine records. Deposits
// and withdrawals cross the engine boundary; the rest move value between the
// escrow pool and per-address credits without changing the engine total.
type LedgerEntryType string

const (
	// LedgerEntryDeposit records funds entering the engine (listing fee, fixed
	// price payment, bid escrow funding).
	LedgerEntryDeposit LedgerEntryType = "deposit"
	// LedgerEntryEscrowLock moves deposited funds into the escrow pool.
	LedgerEntryEscrowLock LedgerEntryType = "escrow_lock"
	// LedgerEntryEscrowRelease converts escrowed funds into a withdrawable credit.
	LedgerEntryEscrowRelease LedgerEntryType = "escrow_release"
	// LedgerEntryEscrowConsume settles escrowed funds into sale proceeds.
	LedgerEntryEscrowConsume LedgerEntryType = "escrow_consume"
	// LedgerEntrySaleProceeds credits a seller with the net sale amount.
	LedgerEntrySaleProceeds LedgerEntryType = "sale_proceeds"
	// LedgerEntryCommission credits the operator with the commission cut.
	LedgerEntryCommission LedgerEntryType = "commission"
	// LedgerEntryListingFee credits the operator with a retained listing fee.
	LedgerEntryListingFee LedgerEntryType = "listing_fee"
	// LedgerEntryRefund credits a buyer or bidder with returned funds.
	LedgerEntryRefund LedgerEntryType = "refund"
	// LedgerEntryWithdrawal records funds leaving the engine.
	LedgerEntryWithdrawal LedgerEntryType = "withdrawal"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryDeposit,
	LedgerEntryEscrowLock,
	LedgerEntryEscrowRelease,
	LedgerEntryEscrowConsume,
	LedgerEntrySaleProceeds,
	LedgerEntryCommission,
	LedgerEntryListingFee,
	LedgerEntryRefund,
	LedgerEntryWithdrawal,
}

// IsValid reports whether the value matches the canonical ledger entry type enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts the raw string to LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
