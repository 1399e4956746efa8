package ledger

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	baserepo "github.com/okabe-dev/bidhouse-backend/internal/repo"
	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// Repository manages persistence for credits and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetCredit(ctx context.Context, address types.Address) (*models.Credit, error)
	GetCreditForUpdate(ctx context.Context, address types.Address) (*models.Credit, error)
	AddCredit(ctx context.Context, address types.Address, amountCents int64) error
	SetCreditBalance(ctx context.Context, address types.Address, balanceCents int64) error
	SumByType(ctx context.Context) (map[enums.LedgerEntryType]int64, error)
	TotalCredits(ctx context.Context) (int64, error)
	ListByAddress(ctx context.Context, address types.Address, limit int) ([]models.LedgerEntry, error)
	ListByListing(ctx context.Context, listingID int64) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) GetCredit(ctx context.Context, address types.Address) (*models.Credit, error) {
	var credit models.Credit
	if err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&credit).Error; err != nil {
		return nil, err
	}
	return &credit, nil
}

func (r *repository) GetCreditForUpdate(ctx context.Context, address types.Address) (*models.Credit, error) {
	var credit models.Credit
	if err := baserepo.WithUpdateLock(r.db.WithContext(ctx)).
		Where("address = ?", address).
		First(&credit).Error; err != nil {
		return nil, err
	}
	return &credit, nil
}

func (r *repository) AddCredit(ctx context.Context, address types.Address, amountCents int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance_cents": gorm.Expr("balance_cents + ?", amountCents),
			}),
		}).
		Create(&models.Credit{Address: address, BalanceCents: amountCents}).Error
}

func (r *repository) SetCreditBalance(ctx context.Context, address types.Address, balanceCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Credit{}).
		Where("address = ?", address).
		Update("balance_cents", balanceCents).Error
}

func (r *repository) SumByType(ctx context.Context) (map[enums.LedgerEntryType]int64, error) {
	type row struct {
		Type enums.LedgerEntryType
		Sum  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("type, COALESCE(SUM(amount_cents), 0) AS sum").
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	sums := make(map[enums.LedgerEntryType]int64, len(rows))
	for _, r := range rows {
		sums[r.Type] = r.Sum
	}
	return sums, nil
}

func (r *repository) TotalCredits(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Credit{}).
		Select("COALESCE(SUM(balance_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByAddress(ctx context.Context, address types.Address, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByListing(ctx context.Context, listingID int64) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
