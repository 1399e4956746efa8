package controllers

import (
	"net/http"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/ledger"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	"github.com/okabe-dev/bidhouse-backend/pkg/metrics"
)

// LedgerBalance returns the caller's withdrawable credit.
func LedgerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := middleware.AddressFromContext(r.Context())
		balance, err := svc.BalanceOf(r.Context(), address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"address":       address,
			"balance_cents": balance,
		})
	}
}

// LedgerWithdraw pays out the caller's entire credit balance.
func LedgerWithdraw(svc ledger.Service, marketMetrics *metrics.MarketMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Withdraw(r.Context(), ledger.WithdrawInput{
			Address: middleware.AddressFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if marketMetrics != nil {
			marketMetrics.IncWithdrawal()
		}
		responses.WriteSuccess(w, result)
	}
}

// LedgerEntries lists the caller's ledger history, newest first.
func LedgerEntries(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.EntriesFor(r.Context(), middleware.AddressFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}
