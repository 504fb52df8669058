package withdrawal

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
	ErrWithdrawalNotFound = apperr.New(apperr.KindNotFound, "withdrawal not found")
	ErrNotPending         = apperr.New(apperr.KindInvalidState, "withdrawal is no longer pending")
)

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, w *Withdrawal) error
	GetByID(ctx context.Context, id string) (*Withdrawal, error)
	LockByID(ctx context.Context, tx *gorm.DB, id string) (*Withdrawal, error)
	// Transition moves a Pending withdrawal to status. A nil tx runs on its own.
	Transition(ctx context.Context, tx *gorm.DB, id string, status Status, proof string, at time.Time) (*Withdrawal, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Withdrawal, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]Withdrawal, int64, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *RepositoryImpl) Create(ctx context.Context, tx *gorm.DB, w *Withdrawal) error {
	if err := r.conn(ctx, tx).Create(w).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id string) (*Withdrawal, error) {
	return r.first(r.conn(ctx, nil).Where("withdrawal_id = ?", id))
}

func (r *RepositoryImpl) LockByID(ctx context.Context, tx *gorm.DB, id string) (*Withdrawal, error) {
	return r.first(r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("withdrawal_id = ?", id))
}

func (r *RepositoryImpl) first(q *gorm.DB) (*Withdrawal, error) {
	var w Withdrawal
	if err := q.First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

func (r *RepositoryImpl) Transition(ctx context.Context, tx *gorm.DB, id string, status Status, proof string, at time.Time) (*Withdrawal, error) {
	updates := map[string]interface{}{"status": status, "updated_at": at}
	if proof != "" {
		updates["proof"] = proof
	}
	var moved []Withdrawal
	result := r.conn(ctx, tx).Model(&moved).
		Clauses(clause.Returning{}).
		Where("withdrawal_id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to move withdrawal to %s: %w", status, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}
	return &moved[0], nil
}

func (r *RepositoryImpl) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Withdrawal, error) {
	var out []Withdrawal
	err := r.conn(ctx, nil).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired withdrawals: %w", err)
	}
	return out, nil
}

func (r *RepositoryImpl) List(ctx context.Context, f Filter, offset, limit int) ([]Withdrawal, int64, error) {
	q := r.conn(ctx, nil).Model(&Withdrawal{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}
	var out []Withdrawal
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return out, total, nil
}

func (r *RepositoryImpl) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	var stats Stats
	aggregate := func(dst *Aggregate, q *gorm.DB) error {
		return q.Model(&Withdrawal{}).
			Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
			Scan(dst).Error
	}
	if err := aggregate(&stats.Approved, r.conn(ctx, nil).Where("status = ?", StatusApproved)); err != nil {
		return nil, fmt.Errorf("failed to aggregate approved withdrawals: %w", err)
	}
	if err := aggregate(&stats.ApprovedToday, r.conn(ctx, nil).Where("status = ? AND created_at >= ?", StatusApproved, since)); err != nil {
		return nil, fmt.Errorf("failed to aggregate today's withdrawals: %w", err)
	}
	if err := r.conn(ctx, nil).Model(&Withdrawal{}).Where("status = ?", StatusPending).Count(&stats.PendingCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending withdrawals: %w", err)
	}
	return &stats, nil
}
