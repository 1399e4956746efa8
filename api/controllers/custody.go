package controllers

import (
	"net/http"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/custody"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type setApprovalRequest struct {
	Operator string `json:"operator" validate:"required,min=3"`
	Approved bool   `json:"approved"`
}

// CustodyHoldings lists the caller's asset holdings.
func CustodyHoldings(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdings, err := svc.HoldingsOf(r.Context(), middleware.AddressFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"holdings": holdings})
	}
}

// SetCustodyApproval grants or revokes an operator's right to move the
// caller's assets. Listing an asset requires approving the engine escrow
// address first.
func SetCustodyApproval(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body setApprovalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		operator, err := types.ParseAddress(body.Operator)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operator address"))
			return
		}
		if err := svc.SetApproval(r.Context(), custody.SetApprovalInput{
			Owner:    middleware.AddressFromContext(r.Context()),
			Operator: operator,
			Approved: body.Approved,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"operator": operator,
			"approved": body.Approved,
		})
	}
}
