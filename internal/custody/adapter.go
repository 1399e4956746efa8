package custody

import (
	"context"

	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Adapter abstracts the asset registry the engine moves collectibles through.
// The engine treats transfers as all-or-nothing: any failure surfaces as a
// custody error and the surrounding transaction rolls back.
type Adapter interface {
	BalanceOf(ctx context.Context, tx *gorm.DB, kind enums.AssetKind, tokenID int64, owner types.Address) (int64, error)
	IsApprovedFor(ctx context.Context, tx *gorm.DB, owner, operator types.Address) (bool, error)
	Transfer(ctx context.Context, tx *gorm.DB, ref types.AssetRef, from, to types.Address) error
	Mint(ctx context.Context, tx *gorm.DB, ref types.AssetRef, owner types.Address) error
}

// Router dispatches custody calls to the adapter registered for each asset
// kind, mirroring separate unique/counted registries behind one surface.
type Router struct {
	unique  Adapter
	counted Adapter
}

// NewRouter builds a router over per-kind adapters.
func NewRouter(unique, counted Adapter) (*Router, error) {
	if unique == nil || counted == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "custody adapters required for both asset kinds")
	}
	return &Router{unique: unique, counted: counted}, nil
}

// Route returns the adapter responsible for the asset kind.
func (r *Router) Route(kind enums.AssetKind) (Adapter, error) {
	switch kind {
	case enums.AssetKindUnique:
		return r.unique, nil
	case enums.AssetKindCounted:
		return r.counted, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown asset kind")
	}
}

func (r *Router) BalanceOf(ctx context.Context, tx *gorm.DB, kind enums.AssetKind, tokenID int64, owner types.Address) (int64, error) {
	adapter, err := r.Route(kind)
	if err != nil {
		return 0, err
	}
	return adapter.BalanceOf(ctx, tx, kind, tokenID, owner)
}

func (r *Router) IsApprovedFor(ctx context.Context, tx *gorm.DB, owner, operator types.Address) (bool, error) {
	// Approval is owner-scoped, not kind-scoped; either adapter can answer.
	return r.unique.IsApprovedFor(ctx, tx, owner, operator)
}

func (r *Router) Transfer(ctx context.Context, tx *gorm.DB, ref types.AssetRef, from, to types.Address) error {
	adapter, err := r.Route(ref.Kind)
	if err != nil {
		return err
	}
	return adapter.Transfer(ctx, tx, ref, from, to)
}

func (r *Router) Mint(ctx context.Context, tx *gorm.DB, ref types.AssetRef, owner types.Address) error {
	adapter, err := r.Route(ref.Kind)
	if err != nil {
		return err
	}
	return adapter.Mint(ctx, tx, ref, owner)
}
