package rollover

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type EventRepository interface {
	CreateEvents(ctx context.Context, tx *gorm.DB, events []Event) error
	ListEvents(ctx context.Context, userID string, offset, limit int) ([]Event, int64, error)
}

type EventRepositoryImpl struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepositoryImpl {
	return &EventRepositoryImpl{db: db}
}

func (r *EventRepositoryImpl) CreateEvents(ctx context.Context, tx *gorm.DB, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Create(&events).Error; err != nil {
		return fmt.Errorf("failed to create rollover events: %w", err)
	}
	return nil
}

func (r *EventRepositoryImpl) ListEvents(ctx context.Context, userID string, offset, limit int) ([]Event, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Event{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rollover events: %w", err)
	}
	var events []Event
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rollover events: %w", err)
	}
	return events, total, nil
}
