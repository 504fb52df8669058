package settings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Get(ctx context.Context) (*Setting, error)
	// GetShared reads the row inside tx under a share lock, so a concurrent
	// Update waits for tx to finish. A nil tx reads without locking.
	GetShared(ctx context.Context, tx *gorm.DB) (*Setting, error)
	// Update applies fn to the locked row and returns the row before and after.
	Update(ctx context.Context, fn func(s *Setting) error) (before, after Setting, err error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Get(ctx context.Context) (*Setting, error) {
	var s Setting
	if err := r.ensure(r.db.WithContext(ctx), &s, ""); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RepositoryImpl) GetShared(ctx context.Context, tx *gorm.DB) (*Setting, error) {
	if tx == nil {
		return r.Get(ctx)
	}
	var s Setting
	if err := r.ensure(tx.WithContext(ctx), &s, "SHARE"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, fn func(s *Setting) error) (Setting, Setting, error) {
	var before, after Setting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Setting
		if err := r.ensure(tx, &current, "UPDATE"); err != nil {
			return err
		}
		before = current
		if err := fn(&current); err != nil {
			return err
		}
		current.SettingID = settingsID
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		after = current
		return nil
	})
	return before, after, err
}

// ensure loads the settings row, creating it with defaults when missing.
func (r *RepositoryImpl) ensure(tx *gorm.DB, dst *Setting, lock string) error {
	load := func() error {
		q := tx
		if lock != "" {
			q = q.Clauses(clause.Locking{Strength: lock})
		}
		return q.First(dst, settingsID).Error
	}

	err := load()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := Defaults()
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
		err = load()
	}
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	return nil
}
