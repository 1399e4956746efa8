package market

import (
	"context"

	"gorm.io/gorm"

	baserepo "github.com/okabe-dev/bidhouse-backend/internal/repo"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
)

// Repository manages the singleton market configuration row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context) (*models.MarketConfig, error)
	GetForUpdate(ctx context.Context) (*models.MarketConfig, error)
	Insert(ctx context.Context, cfg *models.MarketConfig) error
	Update(ctx context.Context, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a market repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context) (*models.MarketConfig, error) {
	var cfg models.MarketConfig
	if err := r.db.WithContext(ctx).
		Where("id = ?", models.MarketConfigID).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) GetForUpdate(ctx context.Context) (*models.MarketConfig, error) {
	var cfg models.MarketConfig
	if err := baserepo.WithUpdateLock(r.db.WithContext(ctx)).
		Where("id = ?", models.MarketConfigID).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) Insert(ctx context.Context, cfg *models.MarketConfig) error {
	cfg.ID = models.MarketConfigID
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *repository) Update(ctx context.Context, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.MarketConfig{}).
		Where("id = ?", models.MarketConfigID).
		Updates(updates).Error
}
