package listings

import (
	"context"

	"gorm.io/gorm"

	baserepo "github.com/okabe-dev/bidhouse-backend/internal/repo"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/pagination"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// ListFilter narrows the listing feed.
type ListFilter struct {
	State  *enums.ListingState
	Mode   *enums.ListingMode
	Seller *types.Address
}

// Repository manages persistence for listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	Get(ctx context.Context, id int64) (*models.Listing, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Listing, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Listing, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) Get(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetForUpdate locks the listing row, serializing all mutations per listing.
func (r *repository) GetForUpdate(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	if err := baserepo.WithUpdateLock(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Listing, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", *filter.Mode)
	}
	if filter.Seller != nil {
		query = query.Where("seller = ?", *filter.Seller)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.Listing
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
