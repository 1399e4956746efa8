package custody

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the registry operations reachable over the API: blanket
// approvals, holdings lookups, and operator-gated minting.
type Service interface {
	SetApproval(ctx context.Context, input SetApprovalInput) error
	HoldingsOf(ctx context.Context, owner types.Address) ([]models.AssetHolding, error)
	BalanceOf(ctx context.Context, kind enums.AssetKind, tokenID int64, owner types.Address) (int64, error)
	Mint(ctx context.Context, input MintInput) error
}

// SetApprovalInput grants or revokes an operator's transfer right.
type SetApprovalInput struct {
	Owner    types.Address
	Operator types.Address
	Approved bool
}

// MintInput seeds new asset units; only the market operator may call it.
type MintInput struct {
	Actor     types.Address
	ActorRole enums.ActorRole
	Ref       types.AssetRef
	Owner     types.Address
}

type service struct {
	registry *Registry
	tx       txRunner
}

// NewService wires the custody service.
func NewService(registry *Registry, tx txRunner) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("custody registry required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{registry: registry, tx: tx}, nil
}

func (s *service) SetApproval(ctx context.Context, input SetApprovalInput) error {
	if input.Owner.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "owner identity missing")
	}
	if input.Operator.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "operator address required")
	}
	if input.Owner == input.Operator {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot approve yourself")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.registry.SetApproval(ctx, tx, input.Owner, input.Operator, input.Approved)
	})
}

func (s *service) HoldingsOf(ctx context.Context, owner types.Address) ([]models.AssetHolding, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner required")
	}
	return s.registry.HoldingsOf(ctx, owner)
}

func (s *service) BalanceOf(ctx context.Context, kind enums.AssetKind, tokenID int64, owner types.Address) (int64, error) {
	if !kind.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid asset kind")
	}
	if owner.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "owner required")
	}
	return s.registry.BalanceOf(ctx, nil, kind, tokenID, owner)
}

func (s *service) Mint(ctx context.Context, input MintInput) error {
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ActorRole != enums.ActorRoleOperator {
		return pkgerrors.New(pkgerrors.CodeForbidden, "minting is operator-only")
	}
	if input.Owner.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.registry.Mint(ctx, tx, input.Ref, input.Owner)
	})
}
