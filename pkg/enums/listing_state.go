package enums

import "fmt"

// ListingState is the lifecycle state of a listing. The only legal edges are
// Created→Listed and Listed→{Sold|Finalized|Cancelled}; the terminal states
// have no outgoing edges.
type ListingState string

const (
	ListingStateCreated   ListingState = "created"
	ListingStateListed    ListingState = "listed"
	ListingStateSold      ListingState = "sold"
	ListingStateCancelled ListingState = "cancelled"
	ListingStateFinalized ListingState = "finalized"
)

var validListingStates = []ListingState{
	ListingStateCreated,
	ListingStateListed,
	ListingStateSold,
	ListingStateCancelled,
	ListingStateFinalized,
}

// IsValid reports whether the value matches the canonical listing state enum.
func (s ListingState) IsValid() bool {
	for _, candidate := range validListingStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing transition.
func (s ListingState) IsTerminal() bool {
	switch s {
	case ListingStateSold, ListingStateCancelled, ListingStateFinalized:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s→next exists in the listing state graph.
func (s ListingState) CanTransitionTo(next ListingState) bool {
	switch s {
	case ListingStateCreated:
		return next == ListingStateListed
	case ListingStateListed:
		return next.IsTerminal()
	}
	return false
}

// ParseListingState converts the raw string to ListingState.
func ParseListingState(value string) (ListingState, error) {
	for _, candidate := range validListingStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing state %q", value)
}
