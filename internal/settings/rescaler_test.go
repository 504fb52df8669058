package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/wallet/wallettest"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestRescale(t *testing.T) {
	tests := []struct {
		name          string
		value         decimal.Decimal
		oldMultiplier decimal.Decimal
		newMultiplier decimal.Decimal
		want          decimal.Decimal
	}{
		{"thirty to ten", d(300), d(30), d(10), d(100)},
		{"ten to thirty", d(100), d(10), d(30), d(300)},
		{"to zero", d(300), d(30), decimal.Zero, decimal.Zero},
		{"old multiplier zero", d(300), decimal.Zero, d(10), d(300)},
		{"nothing outstanding", decimal.Zero, d(30), d(10), decimal.Zero},
		{"rounded to cents", d(100), d(3), d(1), decimal.RequireFromString("33.33")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rescale(tt.value, tt.oldMultiplier, tt.newMultiplier)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func newWallets(ws ...wallet.Wallet) *wallettest.Memory {
	m := wallettest.NewMemory(clock.Fixed{At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
	for _, w := range ws {
		m.Put(w)
	}
	return m
}

func TestRescalerUpdatesEveryWalletWithRollover(t *testing.T) {
	repo := newWallets(
		wallet.Wallet{UserID: "a", BonusRollover: d(300)},
		wallet.Wallet{UserID: "b", DepositRollover: d(600), BonusRollover: d(30)},
		wallet.Wallet{UserID: "c", Main: d(50)},
	)
	r := NewRescaler(wallet.NewService(repo), nil, logger.Discard())

	summary, err := r.Run(context.Background(), d(30), d(10))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 0, summary.Failed)

	a, _ := repo.Snapshot("a")
	assert.True(t, a.BonusRollover.Equal(d(100)))
	b, _ := repo.Snapshot("b")
	assert.True(t, b.DepositRollover.Equal(d(200)))
	assert.True(t, b.BonusRollover.Equal(d(10)))
	c, _ := repo.Snapshot("c")
	assert.Equal(t, 0, c.Version, "wallet without rollover is untouched")
}

func TestRescalerIsolatesFailingWallet(t *testing.T) {
	repo := newWallets(
		wallet.Wallet{UserID: "a", BonusRollover: d(300)},
		wallet.Wallet{UserID: "b", BonusRollover: d(300)},
		wallet.Wallet{UserID: "c", DepositRollover: d(90)},
	)
	repo.FailUpdates("b", errors.New("deadlock detected"))
	r := NewRescaler(wallet.NewService(repo), nil, logger.Discard())

	summary, err := r.Run(context.Background(), d(30), d(10))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Failed)

	a, _ := repo.Snapshot("a")
	assert.True(t, a.BonusRollover.Equal(d(100)))
	b, _ := repo.Snapshot("b")
	assert.True(t, b.BonusRollover.Equal(d(300)))
	c, _ := repo.Snapshot("c")
	assert.True(t, c.DepositRollover.Equal(d(30)))
}

func TestRescalerSkipsWhenOldMultiplierNotPositive(t *testing.T) {
	repo := newWallets(wallet.Wallet{UserID: "a", BonusRollover: d(300)})
	r := NewRescaler(wallet.NewService(repo), nil, logger.Discard())

	summary, err := r.Run(context.Background(), decimal.Zero, d(10))
	require.NoError(t, err)
	assert.True(t, summary.Skipped)

	a, _ := repo.Snapshot("a")
	assert.True(t, a.BonusRollover.Equal(d(300)))
}

func TestRescalerStartsFromEachWalletsRecordedMultiplier(t *testing.T) {
	repo := newWallets(
		wallet.Wallet{UserID: "a", BonusRollover: d(300), RolloverMultiplier: d(30)},
		wallet.Wallet{UserID: "b", DepositRollover: d(100), RolloverMultiplier: d(10)},
		wallet.Wallet{UserID: "c", DepositRollover: d(50), RolloverMultiplier: d(5)},
	)
	r := NewRescaler(wallet.NewService(repo), nil, logger.Discard())

	_, err := r.Run(context.Background(), d(30), d(10))
	require.NoError(t, err)

	a, _ := repo.Snapshot("a")
	assert.True(t, a.BonusRollover.Equal(d(100)))
	assert.True(t, a.RolloverMultiplier.Equal(d(10)))
	b, _ := repo.Snapshot("b")
	assert.True(t, b.DepositRollover.Equal(d(100)), "credited at the new multiplier already")
	assert.Equal(t, 0, b.Version)
	c, _ := repo.Snapshot("c")
	assert.True(t, c.DepositRollover.Equal(d(100)), "scaled from its own multiplier")
	assert.True(t, c.RolloverMultiplier.Equal(d(10)))
}

type memRepo struct {
	mu      sync.Mutex
	current *Setting
}

func (m *memRepo) Get(context.Context) (*Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		s := Defaults()
		m.current = &s
	}
	cp := *m.current
	return &cp, nil
}

func (m *memRepo) GetShared(ctx context.Context, _ *gorm.DB) (*Setting, error) {
	return m.Get(ctx)
}

func (m *memRepo) Update(ctx context.Context, fn func(s *Setting) error) (Setting, Setting, error) {
	cur, _ := m.Get(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	before := *cur
	next := *cur
	if err := fn(&next); err != nil {
		return Setting{}, Setting{}, err
	}
	m.current = &next
	return before, next, nil
}

func TestServiceGetDefaults(t *testing.T) {
	svc := NewService(&memRepo{}, nil, nil, logger.Discard())

	s, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BRL", s.CurrencyCode)
	assert.Equal(t, "R$", s.Prefix)
	assert.True(t, s.MinDeposit.Equal(d(5)))
	assert.True(t, s.MaxDeposit.Equal(d(10000)))
	assert.True(t, s.MinWithdrawal.Equal(d(20)))
	assert.True(t, s.MaxWithdrawal.Equal(d(5000)))
	assert.True(t, s.RolloverMultiplier.IsZero())
}

func TestServiceUpdateTriggersRescaleOnMultiplierChange(t *testing.T) {
	repo := newWallets(wallet.Wallet{UserID: "a", BonusRollover: d(300)})
	start := Defaults()
	start.RolloverMultiplier = d(30)
	settingsRepo := &memRepo{current: &start}
	svc := NewService(settingsRepo, NewRescaler(wallet.NewService(repo), nil, logger.Discard()), nil, logger.Discard())

	ten := d(10)
	res, err := svc.Update(context.Background(), Patch{RolloverMultiplier: &ten})
	require.NoError(t, err)
	require.NotNil(t, res.Rescale)
	assert.Equal(t, 1, res.Rescale.Updated)
	assert.True(t, res.Settings.RolloverMultiplier.Equal(ten))

	a, _ := repo.Snapshot("a")
	assert.True(t, a.BonusRollover.Equal(d(100)))

	// Same multiplier again is not a change.
	res, err = svc.Update(context.Background(), Patch{RolloverMultiplier: &ten})
	require.NoError(t, err)
	assert.Nil(t, res.Rescale)
}

func TestServiceUpdateValidatesBounds(t *testing.T) {
	svc := NewService(&memRepo{}, nil, nil, logger.Discard())

	tooHigh := d(20000)
	_, err := svc.Update(context.Background(), Patch{MinDeposit: &tooHigh})
	require.Error(t, err)

	negative := d(-1)
	_, err = svc.Update(context.Background(), Patch{DepositBonus: &negative})
	require.Error(t, err)

	s, _ := svc.Get(context.Background())
	assert.True(t, s.MinDeposit.Equal(d(5)), "failed patch is not saved")
}
