package market

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the operator-controlled marketplace configuration. Fees and
// commission percentages are read at settlement time only, so updates never
// reprice listings that already settled.
type Service interface {
	Get(ctx context.Context) (*models.MarketConfig, error)
	Seed(ctx context.Context, bootstrap config.MarketConfig) (*models.MarketConfig, error)
	Update(ctx context.Context, input UpdateInput) (*models.MarketConfig, error)
}

// UpdateInput carries operator mutations; nil fields are left untouched.
type UpdateInput struct {
	Actor     types.Address
	ActorRole enums.ActorRole

	OperatorAddress        *types.Address
	ListingFeeCents        *int64
	AuctionListingFeeCents *int64
	FixedCommissionPct     *int64
	AuctionCommissionPct   *int64
	MinBidIncrementCents   *int64
	MinHoldSeconds         *int64
	UniqueAdapterAddress   *string
	CountedAdapterAddress  *string
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires the market configuration service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("market repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context) (*models.MarketConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "market is not configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load market config")
	}
	return cfg, nil
}

// Seed inserts the bootstrap row when none exists yet. It is safe to call on
// every boot.
func (s *service) Seed(ctx context.Context, bootstrap config.MarketConfig) (*models.MarketConfig, error) {
	existing, err := s.repo.Get(ctx)
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load market config")
	}

	operator, err := types.ParseAddress(bootstrap.OperatorAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operator address")
	}
	if err := validatePct(bootstrap.FixedCommissionPct); err != nil {
		return nil, err
	}
	if err := validatePct(bootstrap.AuctionCommissionPct); err != nil {
		return nil, err
	}

	row := &models.MarketConfig{
		OperatorAddress:        operator,
		ListingFeeCents:        bootstrap.ListingFeeCents,
		AuctionListingFeeCents: bootstrap.AuctionListingFeeCents,
		FixedCommissionPct:     bootstrap.FixedCommissionPct,
		AuctionCommissionPct:   bootstrap.AuctionCommissionPct,
		MinBidIncrementCents:   bootstrap.MinBidIncrementCents,
		MinHoldSeconds:         int64(bootstrap.MinHoldPeriod.Seconds()),
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed market config")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.MarketConfig, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ActorRole != enums.ActorRoleOperator {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "market configuration is operator-only")
	}

	var updated *models.MarketConfig
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetForUpdate(ctx)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "market is not configured")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock market config")
		}
		if current.OperatorAddress != input.Actor {
			return pkgerrors.New(pkgerrors.CodeForbidden, "actor is not the market operator")
		}

		updates := map[string]any{}
		if input.OperatorAddress != nil {
			if input.OperatorAddress.IsZero() {
				return pkgerrors.New(pkgerrors.CodeValidation, "operator address required")
			}
			updates["operator_address"] = *input.OperatorAddress
		}
		if input.ListingFeeCents != nil {
			if *input.ListingFeeCents < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "listing fee must be non-negative")
			}
			updates["listing_fee_cents"] = *input.ListingFeeCents
		}
		if input.AuctionListingFeeCents != nil {
			if *input.AuctionListingFeeCents < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "auction listing fee must be non-negative")
			}
			updates["auction_listing_fee_cents"] = *input.AuctionListingFeeCents
		}
		if input.FixedCommissionPct != nil {
			if err := validatePct(*input.FixedCommissionPct); err != nil {
				return err
			}
			updates["fixed_commission_pct"] = *input.FixedCommissionPct
		}
		if input.AuctionCommissionPct != nil {
			if err := validatePct(*input.AuctionCommissionPct); err != nil {
				return err
			}
			updates["auction_commission_pct"] = *input.AuctionCommissionPct
		}
		if input.MinBidIncrementCents != nil {
			if *input.MinBidIncrementCents <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "min bid increment must be positive")
			}
			updates["min_bid_increment_cents"] = *input.MinBidIncrementCents
		}
		if input.MinHoldSeconds != nil {
			if *input.MinHoldSeconds < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "min hold must be non-negative")
			}
			updates["min_hold_seconds"] = *input.MinHoldSeconds
		}
		if input.UniqueAdapterAddress != nil {
			updates["unique_adapter_address"] = *input.UniqueAdapterAddress
		}
		if input.CountedAdapterAddress != nil {
			updates["counted_adapter_address"] = *input.CountedAdapterAddress
		}
		if len(updates) == 0 {
			updated = current
			return nil
		}

		if err := repo.Update(ctx, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update market config")
		}
		updated, err = repo.Get(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload market config")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func validatePct(pct int64) error {
	if pct < 0 || pct > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between 0 and 100")
	}
	return nil
}
