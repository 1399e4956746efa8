package bidding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Repository manages persistence for bids. Bid rows are always touched inside
// the transaction that holds the listing row lock, so no per-bid locking is
// needed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) error
	Get(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByListing(ctx context.Context, listingID int64) ([]models.Bid, error)
	ListActiveByListing(ctx context.Context, listingID int64) ([]models.Bid, error)
	GetActiveByBidder(ctx context.Context, listingID int64, bidder types.Address) (*models.Bid, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bid repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&bid).Error; err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) ListByListing(ctx context.Context, listingID int64) ([]models.Bid, error) {
	var bids []models.Bid
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("placed_at ASC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) ListActiveByListing(ctx context.Context, listingID int64) ([]models.Bid, error) {
	var bids []models.Bid
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND state = ?", listingID, enums.BidStateActive).
		Order("placed_at ASC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) GetActiveByBidder(ctx context.Context, listingID int64, bidder types.Address) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND bidder = ? AND state = ?", listingID, bidder, enums.BidStateActive).
		First(&bid).Error; err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", id).
		Updates(updates).Error
}
