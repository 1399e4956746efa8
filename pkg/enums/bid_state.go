package enums

import "fmt"

// BidState tracks the escrow lifecycle of a bid.
type BidState string

const (
	// BidStateActive means the bid's escrow is still held by the engine and the
	// bid is in the running (it is the high bid, or its ceiling can still top it).
	BidStateActive BidState = "active"
	// BidStateRefunded means the escrow was converted to a ledger credit.
	BidStateRefunded BidState = "refunded"
	// BidStateConsumed means the auction finished in the bidder's favor and the
	// bid amount was paid through to seller and operator.
	BidStateConsumed BidState = "consumed"
)

var validBidStates = []BidState{
	BidStateActive,
	BidStateRefunded,
	BidStateConsumed,
}

// IsValid reports whether the value matches the canonical bid state enum.
func (s BidState) IsValid() bool {
	for _, candidate := range validBidStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBidState converts the raw string to BidState.
func ParseBidState(value string) (BidState, error) {
	for _, candidate := range validBidStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid state %q", value)
}
