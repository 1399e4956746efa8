package custody

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	baserepo "github.com/okabe-dev/bidhouse-backend/internal/repo"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Registry is the GORM-backed asset registry. It keeps per-owner holdings and
// blanket operator approvals, and serves as the Adapter for both asset kinds.
type Registry struct {
	db *gorm.DB
}

// NewRegistry builds a registry bound to the provided database.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// BalanceOf returns how many units of the token the owner controls.
func (r *Registry) BalanceOf(ctx context.Context, tx *gorm.DB, kind enums.AssetKind, tokenID int64, owner types.Address) (int64, error) {
	var holding models.AssetHolding
	err := r.conn(ctx, tx).
		Where("asset_kind = ? AND token_id = ? AND owner = ?", kind, tokenID, owner).
		First(&holding).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load holding")
	}
	return holding.Quantity, nil
}

// IsApprovedFor reports whether the operator may move the owner's assets.
func (r *Registry) IsApprovedFor(ctx context.Context, tx *gorm.DB, owner, operator types.Address) (bool, error) {
	if owner == operator {
		return true, nil
	}
	var approval models.AssetApproval
	err := r.conn(ctx, tx).
		Where("owner = ? AND operator = ?", owner, operator).
		First(&approval).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approval")
	}
	return approval.Approved, nil
}

// SetApproval grants or revokes an operator's blanket transfer right.
func (r *Registry) SetApproval(ctx context.Context, tx *gorm.DB, owner, operator types.Address, approved bool) error {
	conn := r.conn(ctx, tx)
	var approval models.AssetApproval
	err := conn.Where("owner = ? AND operator = ?", owner, operator).First(&approval).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return conn.Create(&models.AssetApproval{
			Owner:    owner,
			Operator: operator,
			Approved: approved,
		}).Error
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approval")
	default:
		return conn.Model(&models.AssetApproval{}).
			Where("id = ?", approval.ID).
			Update("approved", approved).Error
	}
}

// Transfer moves ref.Quantity units from one owner to another. The source
// holding is locked for the duration of the transaction.
func (r *Registry) Transfer(ctx context.Context, tx *gorm.DB, ref types.AssetRef, from, to types.Address) error {
	if err := ref.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid asset reference")
	}
	if from.IsZero() || to.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer endpoints required")
	}
	if from == to {
		return nil
	}

	conn := r.conn(ctx, tx)

	var source models.AssetHolding
	err := baserepo.WithUpdateLock(conn).
		Where("asset_kind = ? AND token_id = ? AND owner = ?", ref.Kind, ref.TokenID, from).
		First(&source).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeCustodyTransfer, "source holds no units of this asset")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source holding")
	}
	if source.Quantity < ref.Quantity {
		return pkgerrors.New(pkgerrors.CodeCustodyTransfer,
			fmt.Sprintf("source holds %d of %d requested units", source.Quantity, ref.Quantity))
	}

	if err := conn.Model(&models.AssetHolding{}).
		Where("id = ?", source.ID).
		Update("quantity", gorm.Expr("quantity - ?", ref.Quantity)).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit source holding")
	}

	return r.creditHolding(conn, ref, to)
}

// Mint creates new units under the owner, for operator seeding and dev use.
func (r *Registry) Mint(ctx context.Context, tx *gorm.DB, ref types.AssetRef, owner types.Address) error {
	if err := ref.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid asset reference")
	}
	if owner.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner required")
	}

	conn := r.conn(ctx, tx)

	if ref.Kind == enums.AssetKindUnique {
		var count int64
		if err := conn.Model(&models.AssetHolding{}).
			Where("asset_kind = ? AND token_id = ? AND quantity > 0", ref.Kind, ref.TokenID).
			Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check unique token")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "unique token already minted")
		}
	}

	return r.creditHolding(conn, ref, owner)
}

// HoldingsOf lists every non-empty holding of the address.
func (r *Registry) HoldingsOf(ctx context.Context, owner types.Address) ([]models.AssetHolding, error) {
	var holdings []models.AssetHolding
	if err := r.db.WithContext(ctx).
		Where("owner = ? AND quantity > 0", owner).
		Order("asset_kind, token_id").
		Find(&holdings).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list holdings")
	}
	return holdings, nil
}

func (r *Registry) creditHolding(conn *gorm.DB, ref types.AssetRef, owner types.Address) error {
	var target models.AssetHolding
	err := conn.Where("asset_kind = ? AND token_id = ? AND owner = ?", ref.Kind, ref.TokenID, owner).
		First(&target).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		if err := conn.Create(&models.AssetHolding{
			AssetKind: ref.Kind,
			TokenID:   ref.TokenID,
			Owner:     owner,
			Quantity:  ref.Quantity,
		}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create holding")
		}
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target holding")
	default:
		if err := conn.Model(&models.AssetHolding{}).
			Where("id = ?", target.ID).
			Update("quantity", gorm.Expr("quantity + ?", ref.Quantity)).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit target holding")
		}
		return nil
	}
}
