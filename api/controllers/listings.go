package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/listings"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type assetRefBody struct {
	Kind     string `json:"kind" validate:"required,oneof=unique counted"`
	TokenID  int64  `json:"token_id" validate:"required,gt=0"`
	Quantity int64  `json:"quantity" validate:"omitempty,gt=0"`
}

func (b assetRefBody) toRef() types.AssetRef {
	quantity := b.Quantity
	if quantity == 0 {
		quantity = 1
	}
	return types.AssetRef{
		Kind:     enums.AssetKind(b.Kind),
		TokenID:  b.TokenID,
		Quantity: quantity,
	}
}

type createListingRequest struct {
	Asset        assetRefBody `json:"asset" validate:"required"`
	PriceCents   int64        `json:"price_cents" validate:"required,gt=0"`
	PaymentCents int64        `json:"payment_cents" validate:"gte=0"`
}

type createAuctionRequest struct {
	Asset           assetRefBody `json:"asset" validate:"required"`
	StartPriceCents int64        `json:"start_price_cents" validate:"required,gt=0"`
	PaymentCents    int64        `json:"payment_cents" validate:"gte=0"`
	EndsAt          *time.Time   `json:"ends_at"`
}

type buyListingRequest struct {
	PaymentCents int64 `json:"payment_cents" validate:"required,gt=0"`
}

func listingIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "listing id must be a positive integer")
	}
	return id, nil
}

// CreateListing lists an asset at a fixed price. The caller's payment must
// cover the listing fee.
func CreateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Create(r.Context(), listings.CreateInput{
			Seller:       middleware.AddressFromContext(r.Context()),
			Ref:          body.Asset.toRef(),
			PriceCents:   body.PriceCents,
			PaymentCents: body.PaymentCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// CreateAuction lists an asset for bidding.
func CreateAuction(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAuctionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.CreateAuction(r.Context(), listings.CreateAuctionInput{
			Seller:          middleware.AddressFromContext(r.Context()),
			Ref:             body.Asset.toRef(),
			StartPriceCents: body.StartPriceCents,
			PaymentCents:    body.PaymentCents,
			EndsAt:          body.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// CancelListing withdraws a listing and returns the asset to the seller.
func CancelListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Cancel(r.Context(), listings.CancelInput{
			ListingID: id,
			Actor:     middleware.AddressFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// BuyListing purchases a fixed-price listing outright.
func BuyListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body buyListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Buy(r.Context(), listings.BuyInput{
			ListingID:    id,
			Buyer:        middleware.AddressFromContext(r.Context()),
			PaymentCents: body.PaymentCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// GetListing returns one listing by id.
func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := listingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListListings pages the public listing feed, newest first. Supports state,
// mode and seller filters via query parameters.
func ListListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter listings.ListFilter
		if raw := r.URL.Query().Get("state"); raw != "" {
			state, err := enums.ParseListingState(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid state filter"))
				return
			}
			filter.State = &state
		}
		if raw := r.URL.Query().Get("mode"); raw != "" {
			mode, err := enums.ParseListingMode(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mode filter"))
				return
			}
			filter.Mode = &mode
		}
		if raw := r.URL.Query().Get("seller"); raw != "" {
			seller, err := types.ParseAddress(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller filter"))
				return
			}
			filter.Seller = &seller
		}

		result, err := svc.List(r.Context(), listings.ListInput{
			Filter: filter,
			Cursor: r.URL.Query().Get("cursor"),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"listings":    result.Listings,
			"next_cursor": result.NextCursor,
		})
	}
}
