package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okabe-dev/bidhouse-backend/pkg/db/models"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
)

// Error messages are operator-facing diagnostics; cap them so a pathological
// wrapped chain cannot bloat the row.
const maxDLQErrorLen = 1024

const defaultDLQPageSize = 50

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a terminally failed event inside the publisher's batch
// transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

// List returns recent DLQ rows, newest first, optionally filtered to a single
// event type.
func (r *DLQRepository) List(ctx context.Context, eventType enums.OutboxEventType, limit int) ([]models.OutboxDLQ, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultDLQPageSize
	}
	query := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	var rows []models.OutboxDLQ
	err := query.Find(&rows).Error
	return rows, err
}
