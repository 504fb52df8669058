package withdrawal

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/wallet/wallettest"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memRepo struct {
	mu          sync.Mutex
	withdrawals map[string]*Withdrawal
}

func newMemRepo() *memRepo { return &memRepo{withdrawals: make(map[string]*Withdrawal)} }

func (m *memRepo) Create(_ context.Context, _ *gorm.DB, w *Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.withdrawals[w.WithdrawalID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memRepo) LockByID(ctx context.Context, _ *gorm.DB, id string) (*Withdrawal, error) {
	return m.GetByID(ctx, id)
}

func (m *memRepo) Transition(_ context.Context, _ *gorm.DB, id string, status Status, proof string, at time.Time) (*Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	if w.Status != StatusPending {
		return nil, ErrNotPending
	}
	w.Status = status
	w.UpdatedAt = at
	if proof != "" {
		w.Proof = proof
	}
	cp := *w
	return &cp, nil
}

func (m *memRepo) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Withdrawal
	for _, w := range m.withdrawals {
		if w.Status == StatusPending && w.CreatedAt.Before(cutoff) {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context, f Filter, offset, limit int) ([]Withdrawal, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Withdrawal
	for _, w := range m.withdrawals {
		if (f.UserID == "" || w.UserID == f.UserID) && (f.Status == "" || w.Status == f.Status) {
			out = append(out, *w)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *memRepo) Stats(_ context.Context, since time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, w := range m.withdrawals {
		switch w.Status {
		case StatusPending:
			s.PendingCount++
		case StatusApproved:
			s.Approved.Count++
			s.Approved.Total = s.Approved.Total.Add(w.Amount)
			if !w.CreatedAt.Before(since) {
				s.ApprovedToday.Count++
				s.ApprovedToday.Total = s.ApprovedToday.Total.Add(w.Amount)
			}
		}
	}
	return &s, nil
}

type staticSettings struct{ s settings.Setting }

func (s staticSettings) Get(context.Context) (*settings.Setting, error) {
	cp := s.s
	return &cp, nil
}

type fixture struct {
	repo    *memRepo
	wallets *wallettest.Memory
	svc     *Service
}

func newFixture(t *testing.T, ws ...wallet.Wallet) *fixture {
	t.Helper()
	wallets := wallettest.NewMemory(clock.Fixed{At: now})
	for _, w := range ws {
		wallets.Put(w)
	}
	f := &fixture{repo: newMemRepo(), wallets: wallets}
	f.svc = NewService(f.repo, wallet.NewService(wallets), staticSettings{settings.Defaults()}, nil, nil, clock.Fixed{At: now}, logger.Discard())
	return f
}

func pix(userID string, amount int64) Request {
	return Request{UserID: userID, Amount: d(amount), DestinationKey: "user@example.com", DestinationType: "email"}
}

type pools struct {
	main, bonus, withdrawable, bonusRollover, depositRollover decimal.Decimal
}

func poolsOf(w wallet.Wallet) pools {
	return pools{w.Main, w.Bonus, w.Withdrawable, w.BonusRollover, w.DepositRollover}
}

func (p pools) equal(o pools) bool {
	return p.main.Equal(o.main) && p.bonus.Equal(o.bonus) && p.withdrawable.Equal(o.withdrawable) &&
		p.bonusRollover.Equal(o.bonusRollover) && p.depositRollover.Equal(o.depositRollover)
}

func TestRequestReservesFunds(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Currency: "BRL", Main: d(200), Withdrawable: d(150)})

	wd, err := f.svc.Request(context.Background(), pix("u1", 100))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, wd.Status)
	assert.Equal(t, "BRL", wd.Currency)

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(100)))
	assert.True(t, w.Withdrawable.Equal(d(50)))
	assert.Len(t, f.wallets.AllChanges(), 2)
}

func TestRequestBlockedByRollover(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(200), Withdrawable: d(200), BonusRollover: d(30), DepositRollover: d(12)})

	_, err := f.svc.Request(context.Background(), pix("u1", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRolloverPending)
	assert.True(t, apperr.AmountOf(err).Equal(d(42)), "reports the exact outstanding requirement")
	assert.Empty(t, f.repo.withdrawals)
}

func TestRequestInsufficientWithdrawable(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(200), Withdrawable: d(30)})

	_, err := f.svc.Request(context.Background(), pix("u1", 100))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.True(t, apperr.AmountOf(err).Equal(d(70)))

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(200)))
}

func TestRequestBounds(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(10000), Withdrawable: d(10000)})

	_, err := f.svc.Request(context.Background(), pix("u1", 19))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Request(context.Background(), pix("u1", 5001))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Request(context.Background(), Request{UserID: "u1", Amount: d(50)})
	assert.ErrorIs(t, err, apperr.ErrValidation, "destination is required")
}

func TestRejectRestoresStateBeforeRequest(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(250), Bonus: d(5), Withdrawable: d(120)})
	ctx := context.Background()
	before, _ := f.wallets.Snapshot("u1")

	wd, err := f.svc.Request(ctx, pix("u1", 100))
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, wd.WithdrawalID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	after, _ := f.wallets.Snapshot("u1")
	assert.True(t, poolsOf(before).equal(poolsOf(after)), "before %+v after %+v", poolsOf(before), poolsOf(after))

	_, err = f.svc.Reject(ctx, wd.WithdrawalID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	again, _ := f.wallets.Snapshot("u1")
	assert.True(t, poolsOf(after).equal(poolsOf(again)), "second reject restores nothing")
}

func TestConcurrentReleaseRestoresOnce(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(100), Withdrawable: d(100)})
	ctx := context.Background()

	wd, err := f.svc.Request(ctx, pix("u1", 100))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.svc.Reject(ctx, wd.WithdrawalID)
			} else {
				_, _ = f.svc.Cancel(ctx, "u1", wd.WithdrawalID)
			}
		}(i)
	}
	wg.Wait()

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(100)), "main %s", w.Main)
	assert.True(t, w.Withdrawable.Equal(d(100)))
}

func TestApproveKeepsFundsDebited(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(100), Withdrawable: d(100)})
	ctx := context.Background()

	wd, err := f.svc.Request(ctx, pix("u1", 60))
	require.NoError(t, err)
	approved, err := f.svc.Approve(ctx, wd.WithdrawalID, "https://cdn.example.com/proof.png")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "https://cdn.example.com/proof.png", approved.Proof)

	_, err = f.svc.Reject(ctx, wd.WithdrawalID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(40)))
	assert.True(t, w.Withdrawable.Equal(d(40)))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Approved.Count)
	assert.True(t, stats.Approved.Total.Equal(d(60)))
	assert.Equal(t, int64(1), stats.ApprovedToday.Count)
}

func TestCancelOnlyOwnRequest(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(100), Withdrawable: d(100)})
	ctx := context.Background()

	wd, err := f.svc.Request(ctx, pix("u1", 50))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "u2", wd.WithdrawalID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	canceled, err := f.svc.Cancel(ctx, "u1", wd.WithdrawalID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)
	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(100)))
}

func TestExpirePendingRestoresReservation(t *testing.T) {
	f := newFixture(t, wallet.Wallet{UserID: "u1", Main: d(40), Withdrawable: d(40)})
	ctx := context.Background()
	old := &Withdrawal{WithdrawalID: "old", UserID: "u1", Amount: d(60), Status: StatusPending, CreatedAt: now.Add(-6 * time.Minute)}
	fresh := &Withdrawal{WithdrawalID: "fresh", UserID: "u1", Amount: d(25), Status: StatusPending, CreatedAt: now.Add(-4 * time.Minute)}
	require.NoError(t, f.repo.Create(ctx, nil, old))
	require.NoError(t, f.repo.Create(ctx, nil, fresh))

	n, err := f.svc.ExpirePending(ctx, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.repo.GetByID(ctx, "old")
	assert.Equal(t, StatusCanceled, got.Status)
	got, _ = f.repo.GetByID(ctx, "fresh")
	assert.Equal(t, StatusPending, got.Status)

	w, _ := f.wallets.Snapshot("u1")
	assert.True(t, w.Main.Equal(d(100)))
	assert.True(t, w.Withdrawable.Equal(d(100)))
}
