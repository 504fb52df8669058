package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wallet_ledger/internal/apperr"
)

var (
	ErrDepositNotFound = apperr.New(apperr.KindNotFound, "deposit not found")
	ErrNotPending      = apperr.New(apperr.KindInvalidState, "deposit is no longer pending")
)

type Repository interface {
	Create(ctx context.Context, d *Deposit) error
	GetByID(ctx context.Context, id string) (*Deposit, error)
	GetByRef(ctx context.Context, ref string) (*Deposit, error)
	// LockByID reads the deposit FOR UPDATE inside tx.
	LockByID(ctx context.Context, tx *gorm.DB, id string) (*Deposit, error)
	CountConfirmed(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	// MarkConfirmed moves a Pending deposit to Confirmed inside tx.
	MarkConfirmed(ctx context.Context, tx *gorm.DB, d *Deposit, at time.Time) error
	// CancelPending cancels one deposit if it is still Pending.
	CancelPending(ctx context.Context, id string, at time.Time) (*Deposit, error)
	// CancelExpired cancels up to limit deposits still Pending and created before cutoff.
	CancelExpired(ctx context.Context, cutoff time.Time, limit int, at time.Time) ([]Deposit, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]Deposit, int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, d *Deposit) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create deposit: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id string) (*Deposit, error) {
	return r.first(r.db.WithContext(ctx).Where("deposit_id = ?", id))
}

func (r *RepositoryImpl) GetByRef(ctx context.Context, ref string) (*Deposit, error) {
	return r.first(r.db.WithContext(ctx).Where("external_ref = ?", ref))
}

func (r *RepositoryImpl) LockByID(ctx context.Context, tx *gorm.DB, id string) (*Deposit, error) {
	return r.first(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("deposit_id = ?", id))
}

func (r *RepositoryImpl) first(q *gorm.DB) (*Deposit, error) {
	var d Deposit
	if err := q.First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return &d, nil
}

func (r *RepositoryImpl) CountConfirmed(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&Deposit{}).
		Where("user_id = ? AND status = ?", userID, StatusConfirmed).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count confirmed deposits: %w", err)
	}
	return n, nil
}

func (r *RepositoryImpl) MarkConfirmed(ctx context.Context, tx *gorm.DB, d *Deposit, at time.Time) error {
	result := tx.WithContext(ctx).Model(&Deposit{}).
		Where("deposit_id = ? AND status = ?", d.DepositID, StatusPending).
		Updates(map[string]interface{}{
			"status":       StatusConfirmed,
			"bonus_amount": d.BonusAmount,
			"updated_at":   at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to confirm deposit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}
	d.Status = StatusConfirmed
	d.UpdatedAt = at
	return nil
}

func (r *RepositoryImpl) CancelPending(ctx context.Context, id string, at time.Time) (*Deposit, error) {
	var canceled []Deposit
	result := r.db.WithContext(ctx).Model(&canceled).
		Clauses(clause.Returning{}).
		Where("deposit_id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{"status": StatusCanceled, "updated_at": at})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to cancel deposit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}
	return &canceled[0], nil
}

// CancelExpired is a single conditional UPDATE, so a deposit confirmed
// concurrently keeps its Confirmed status.
func (r *RepositoryImpl) CancelExpired(ctx context.Context, cutoff time.Time, limit int, at time.Time) ([]Deposit, error) {
	db := r.db.WithContext(ctx)
	batch := db.Model(&Deposit{}).
		Select("deposit_id").
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at").
		Limit(limit)

	var canceled []Deposit
	err := db.Model(&canceled).
		Clauses(clause.Returning{}).
		Where("deposit_id IN (?) AND status = ?", batch, StatusPending).
		Updates(map[string]interface{}{"status": StatusCanceled, "updated_at": at}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to cancel expired deposits: %w", err)
	}
	return canceled, nil
}

func (r *RepositoryImpl) List(ctx context.Context, f Filter, offset, limit int) ([]Deposit, int64, error) {
	q := r.db.WithContext(ctx).Model(&Deposit{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deposits: %w", err)
	}
	var deposits []Deposit
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&deposits).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list deposits: %w", err)
	}
	return deposits, total, nil
}
