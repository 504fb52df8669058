package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/clock"
)

var (
	ErrWalletNotFound = apperr.New(apperr.KindNotFound, "wallet not found")
	ErrWalletExists   = apperr.New(apperr.KindInvalidState, "wallet already exists")
	ErrOptimisticLock = errors.New("optimistic lock error")
)

// UpdateFunc mutates a locked wallet through l. Any other rows written on tx
// commit or roll back together with the wallet. tx is nil for in-memory
// repositories.
type UpdateFunc func(tx *gorm.DB, l *Ledger) error

type WalletRepository interface {
	CreateWallet(ctx context.Context, userID string, currency string) (*Wallet, error)
	GetWallet(ctx context.Context, userID string) (*Wallet, error)
	Update(ctx context.Context, userID string, fn UpdateFunc) (*Wallet, error)
	ListChanges(ctx context.Context, userID string, offset, limit int) ([]LedgerChange, int64, error)
	ListUserIDsWithRollover(ctx context.Context) ([]string, error)
}

type WalletRepositoryImpl struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewWalletRepositoryImpl(db *gorm.DB, clk clock.Clock) WalletRepository {
	return &WalletRepositoryImpl{db: db, clock: clk}
}

func (r *WalletRepositoryImpl) CreateWallet(ctx context.Context, userID string, currency string) (*Wallet, error) {
	now := r.clock.Now()
	w := Wallet{
		WalletID:  uuid.New().String(),
		UserID:    userID,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&w)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrWalletExists
	}
	return &w, nil
}

func (r *WalletRepositoryImpl) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	var w Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// Update locks the wallet row, runs fn and writes the new pool values, the
// version bump and every collected LedgerChange in the same transaction.
func (r *WalletRepositoryImpl) Update(ctx context.Context, userID string, fn UpdateFunc) (*Wallet, error) {
	var out Wallet
	err := r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var w Wallet
		err := dbtx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&w).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		now := r.clock.Now()
		l := NewLedger(&w, now)
		if err := fn(dbtx, l); err != nil {
			return err
		}
		if !l.Dirty() {
			out = w
			return nil
		}

		result := dbtx.Model(&Wallet{}).Where("wallet_id = ? AND version = ?", w.WalletID, w.Version).
			Updates(map[string]interface{}{
				"balance":                  w.Main,
				"balance_bonus":            w.Bonus,
				"balance_withdrawal":       w.Withdrawable,
				"balance_bonus_rollover":   w.BonusRollover,
				"balance_deposit_rollover": w.DepositRollover,
				"rollover_multiplier":      w.RolloverMultiplier,
				"total_bet":                w.TotalBet,
				"total_won":                w.TotalWon,
				"total_lose":               w.TotalLose,
				"hide_balance":             w.HideBalance,
				"version":                  gorm.Expr("version + 1"),
				"updated_at":               now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update wallet: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrOptimisticLock
		}

		if changes := l.Changes(); len(changes) > 0 {
			if err := dbtx.Create(&changes).Error; err != nil {
				return fmt.Errorf("failed to record wallet changes: %w", err)
			}
		}

		w.Version++
		w.UpdatedAt = now
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *WalletRepositoryImpl) ListChanges(ctx context.Context, userID string, offset, limit int) ([]LedgerChange, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&LedgerChange{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallet changes: %w", err)
	}
	var changes []LedgerChange
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list wallet changes: %w", err)
	}
	return changes, total, nil
}

func (r *WalletRepositoryImpl) ListUserIDsWithRollover(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("balance_bonus_rollover > 0 OR balance_deposit_rollover > 0").
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets with rollover: %w", err)
	}
	return ids, nil
}
