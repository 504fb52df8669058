package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
)

const (
	MaxRetries = 3
	RetryDelay = 10 * time.Millisecond

	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Service struct {
	repo WalletRepository
}

func NewService(repo WalletRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateWallet(ctx context.Context, userID string, currency string) (*Wallet, error) {
	return s.repo.CreateWallet(ctx, userID, currency)
}

// Find returns the stored aggregate.
func (s *Service) Find(ctx context.Context, userID string) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

func (s *Service) GetWallet(ctx context.Context, userID string) (*View, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewView(w), nil
}

// TotalBalance returns main + bonus + withdrawable, or zero when the user has no wallet.
func (s *Service) TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return w.TotalBalance(), nil
}

func (s *Service) Credit(ctx context.Context, userID string, pool Pool, amount decimal.Decimal, reason string) (*Wallet, error) {
	return s.Update(ctx, userID, func(_ *gorm.DB, l *Ledger) error {
		return l.Credit(pool, amount, reason)
	})
}

func (s *Service) Debit(ctx context.Context, userID string, pool Pool, amount decimal.Decimal, reason string) (*Wallet, error) {
	return s.Update(ctx, userID, func(_ *gorm.DB, l *Ledger) error {
		return l.Debit(pool, amount, reason)
	})
}

// Adjust applies a signed manual correction to main or bonus. The withdrawable
// portion and the rollover requirements only move through deposits, bets and
// withdrawals. Debiting main below withdrawable lowers withdrawable with it.
func (s *Service) Adjust(ctx context.Context, userID string, pool Pool, delta decimal.Decimal, reason string) (*Wallet, error) {
	if pool != PoolMain && pool != PoolBonus {
		return nil, apperr.Validation("pool %s cannot be adjusted manually", pool)
	}
	if delta.IsZero() {
		return nil, apperr.Validation("adjustment amount must not be zero")
	}
	return s.Update(ctx, userID, func(_ *gorm.DB, l *Ledger) error {
		if delta.IsPositive() {
			return l.Credit(pool, delta, reason)
		}
		if err := l.Debit(pool, delta.Neg(), reason); err != nil {
			return err
		}
		if main := l.Balance(PoolMain); pool == PoolMain && l.Balance(PoolWithdrawable).GreaterThan(main) {
			return l.Set(PoolWithdrawable, main, reason)
		}
		return nil
	})
}

func (s *Service) TransferAll(ctx context.Context, userID string, from, to Pool, reason string) (*Wallet, error) {
	return s.Update(ctx, userID, func(_ *gorm.DB, l *Ledger) error {
		_, err := l.TransferAll(from, to, reason)
		return err
	})
}

func (s *Service) ToggleHideBalance(ctx context.Context, userID string) (*View, error) {
	w, err := s.Update(ctx, userID, func(_ *gorm.DB, l *Ledger) error {
		l.ToggleHideBalance()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewView(w), nil
}

func (s *Service) Changes(ctx context.Context, userID string, page, limit int) (*ChangePage, error) {
	page, limit = NormalizePage(page, limit)
	changes, total, err := s.repo.ListChanges(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &ChangePage{Changes: changes, Total: total, Page: page, Limit: limit}, nil
}

// UserIDsWithRollover lists users with any outstanding wagering requirement.
func (s *Service) UserIDsWithRollover(ctx context.Context) ([]string, error) {
	return s.repo.ListUserIDsWithRollover(ctx)
}

// Update runs fn against the locked wallet, retrying when a concurrent writer
// won the version race.
func (s *Service) Update(ctx context.Context, userID string, fn UpdateFunc) (*Wallet, error) {
	var err error
	for i := 0; i < MaxRetries; i++ {
		var w *Wallet
		w, err = s.repo.Update(ctx, userID, fn)
		if err == nil {
			return w, nil
		}
		if errors.Is(err, ErrOptimisticLock) {
			time.Sleep(RetryDelay)
			continue
		}
		return nil, err
	}
	return nil, err
}

func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
