package controllers

import (
	"net/http"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type updateMarketRequest struct {
	OperatorAddress        *string `json:"operator_address" validate:"omitempty,min=3"`
	ListingFeeCents        *int64  `json:"listing_fee_cents" validate:"omitempty,gte=0"`
	AuctionListingFeeCents *int64  `json:"auction_listing_fee_cents" validate:"omitempty,gte=0"`
	FixedCommissionPct     *int64  `json:"fixed_commission_pct" validate:"omitempty,gte=0,lte=100"`
	AuctionCommissionPct   *int64  `json:"auction_commission_pct" validate:"omitempty,gte=0,lte=100"`
	MinBidIncrementCents   *int64  `json:"min_bid_increment_cents" validate:"omitempty,gte=0"`
	MinHoldSeconds         *int64  `json:"min_hold_seconds" validate:"omitempty,gte=0"`
	UniqueAdapterAddress   *string `json:"unique_adapter_address"`
	CountedAdapterAddress  *string `json:"counted_adapter_address"`
}

type mintAssetRequest struct {
	Asset assetRefBody `json:"asset" validate:"required"`
	Owner string       `json:"owner" validate:"required,min=3"`
}

// GetMarketConfig returns the live market parameters.
func GetMarketConfig(svc market.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// UpdateMarketConfig applies operator changes to the market parameters.
// Absent fields keep their current values.
func UpdateMarketConfig(svc market.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateMarketRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := market.UpdateInput{
			Actor:                  middleware.AddressFromContext(r.Context()),
			ActorRole:              middleware.RoleFromContext(r.Context()),
			ListingFeeCents:        body.ListingFeeCents,
			AuctionListingFeeCents: body.AuctionListingFeeCents,
			FixedCommissionPct:     body.FixedCommissionPct,
			AuctionCommissionPct:   body.AuctionCommissionPct,
			MinBidIncrementCents:   body.MinBidIncrementCents,
			MinHoldSeconds:         body.MinHoldSeconds,
			UniqueAdapterAddress:   body.UniqueAdapterAddress,
			CountedAdapterAddress:  body.CountedAdapterAddress,
		}
		if body.OperatorAddress != nil {
			operator, err := types.ParseAddress(*body.OperatorAddress)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operator address"))
				return
			}
			input.OperatorAddress = &operator
		}

		cfg, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// MintAsset seeds new asset units into custody. Operator only.
func MintAsset(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body mintAssetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := types.ParseAddress(body.Owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner address"))
			return
		}
		if err := svc.Mint(r.Context(), custody.MintInput{
			Actor:     middleware.AddressFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
			Ref:       body.Asset.toRef(),
			Owner:     owner,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"asset": body.Asset.toRef(),
			"owner": owner,
		})
	}
}

// LedgerAudit runs the conservation check across the whole ledger.
func LedgerAudit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Audit(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
