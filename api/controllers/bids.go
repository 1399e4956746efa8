package controllers

import (
	"net/http"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/bidding"
	"github.com/okabe-dev/bidhouse-backend/internal/settlement"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type placeBidRequest struct {
	AmountCents  int64 `json:"amount_cents" validate:"required,gt=0"`
	CeilingCents int64 `json:"ceiling_cents" validate:"omitempty,gt=0"`
	PaymentCents int64 `json:"payment_cents" validate:"required,gt=0"`
}

type placeBidResponse struct {
	Bid          any    `json:"bid"`
	HighBidCents int64  `json:"high_bid_cents"`
	HighBidder   string `json:"high_bidder"`
	AutoRaises   int    `json:"auto_raises"`
}

// PlaceBid submits a bid on an auction. The payment must cover the ceiling
// when one is given, otherwise the bid amount.
func PlaceBid(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body placeBidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.PlaceBid(r.Context(), bidding.PlaceBidInput{
			ListingID:    listingID,
			Bidder:       middleware.AddressFromContext(r.Context()),
			AmountCents:  body.AmountCents,
			CeilingCents: body.CeilingCents,
			PaymentCents: body.PaymentCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, placeBidResponse{
			Bid:          result.Bid,
			HighBidCents: result.HighBidCents,
			HighBidder:   result.HighBidder.String(),
			AutoRaises:   result.AutoRaises,
		})
	}
}

// ListBids returns the bid history for an auction, oldest first. With
// ?bidder=<address> it instead returns that bidder's active bid.
func ListBids(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := r.URL.Query().Get("bidder"); raw != "" {
			bidder, err := types.ParseAddress(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bidder address"))
				return
			}
			bid, err := svc.ActiveBidFor(r.Context(), listingID, bidder)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]any{"bid": bid})
			return
		}
		bids, err := svc.ListForListing(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"bids": bids})
	}
}

// FinishAuction settles an auction after its hold period: the winner takes
// the asset, the seller takes the hammer price less commission. Any caller
// may trigger it.
func FinishAuction(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.FinishAuction(r.Context(), settlement.FinishInput{
			ListingID: listingID,
			Actor:     middleware.AddressFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
