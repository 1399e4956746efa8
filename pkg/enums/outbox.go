package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateListing       OutboxAggregateType = "listing"
	AggregateBid           OutboxAggregateType = "bid"
	AggregateLedgerAccount OutboxAggregateType = "ledger_account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateListing,
	AggregateBid,
	AggregateLedgerAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventListingCreated   OutboxEventType = "listing_created"
	EventListingCancelled OutboxEventType = "listing_cancelled"
	EventListingSold      OutboxEventType = "listing_sold"
	EventBidPlaced        OutboxEventType = "bid_placed"
	EventBidAutoRaised    OutboxEventType = "bid_auto_raised"
	EventBidRefunded      OutboxEventType = "bid_refunded"
	EventAuctionFinished  OutboxEventType = "auction_finished"
	EventFundsWithdrawn   OutboxEventType = "funds_withdrawn"
)

var validOutboxEventTypes = []OutboxEventType{
	EventListingCreated,
	EventListingCancelled,
	EventListingSold,
	EventBidPlaced,
	EventBidAutoRaised,
	EventBidRefunded,
	EventAuctionFinished,
	EventFundsWithdrawn,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
