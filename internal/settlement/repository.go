package settlement

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("settlement record not found")

type Repository interface {
	FindByRef(ctx context.Context, tx *gorm.DB, userID, ref string) (*Record, error)
	Create(ctx context.Context, tx *gorm.DB, record *Record) error
}

type RepositoryImpl struct{}

func NewRepository() *RepositoryImpl {
	return &RepositoryImpl{}
}

func (r *RepositoryImpl) FindByRef(ctx context.Context, tx *gorm.DB, userID, ref string) (*Record, error) {
	var record Record
	err := tx.WithContext(ctx).
		Where("user_id = ? AND settlement_ref = ?", userID, ref).
		Order("created_at ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find settlement %s: %w", ref, err)
	}
	return &record, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, tx *gorm.DB, record *Record) error {
	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to journal settlement %s: %w", record.SettlementRef, err)
	}
	return nil
}
