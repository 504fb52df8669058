// Package wallettest provides an in-memory wallet repository for tests.
package wallettest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/wallet"
)

// Memory implements wallet.WalletRepository with one mutex per wallet, so
// updates to the same wallet serialize and a failing UpdateFunc leaves no trace.
type Memory struct {
	Clock clock.Clock

	mu      sync.Mutex
	wallets map[string]*wallet.Wallet
	locks   map[string]*sync.Mutex
	changes []wallet.LedgerChange
	fail    map[string]error
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		Clock:   clk,
		wallets: make(map[string]*wallet.Wallet),
		locks:   make(map[string]*sync.Mutex),
		fail:    make(map[string]error),
	}
}

// Put stores w as-is, replacing any wallet of the same user.
func (m *Memory) Put(w wallet.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.WalletID == "" {
		w.WalletID = uuid.NewString()
	}
	m.wallets[w.UserID] = &w
	if _, ok := m.locks[w.UserID]; !ok {
		m.locks[w.UserID] = &sync.Mutex{}
	}
}

// FailUpdates makes every Update of userID return err.
func (m *Memory) FailUpdates(userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[userID] = err
}

// Snapshot returns the committed state of a wallet.
func (m *Memory) Snapshot(userID string) (wallet.Wallet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return wallet.Wallet{}, false
	}
	return *w, true
}

func (m *Memory) AllChanges() []wallet.LedgerChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wallet.LedgerChange, len(m.changes))
	copy(out, m.changes)
	return out
}

func (m *Memory) CreateWallet(_ context.Context, userID string, currency string) (*wallet.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[userID]; ok {
		return nil, wallet.ErrWalletExists
	}
	now := m.Clock.Now()
	w := &wallet.Wallet{
		WalletID:  uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.wallets[userID] = w
	m.locks[userID] = &sync.Mutex{}
	cp := *w
	return &cp, nil
}

func (m *Memory) GetWallet(_ context.Context, userID string) (*wallet.Wallet, error) {
	w, ok := m.Snapshot(userID)
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &w, nil
}

func (m *Memory) Update(_ context.Context, userID string, fn wallet.UpdateFunc) (*wallet.Wallet, error) {
	m.mu.Lock()
	lock, ok := m.locks[userID]
	failErr := m.fail[userID]
	m.mu.Unlock()
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if failErr != nil {
		return nil, failErr
	}

	lock.Lock()
	defer lock.Unlock()

	current, _ := m.Snapshot(userID)
	now := m.Clock.Now()
	l := wallet.NewLedger(&current, now)
	if err := fn(nil, l); err != nil {
		return nil, err
	}
	if !l.Dirty() {
		return &current, nil
	}
	next := l.Wallet()
	next.Version++
	next.UpdatedAt = now

	m.mu.Lock()
	stored := next
	m.wallets[userID] = &stored
	m.changes = append(m.changes, l.Changes()...)
	m.mu.Unlock()
	return &next, nil
}

func (m *Memory) ListChanges(_ context.Context, userID string, offset, limit int) ([]wallet.LedgerChange, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []wallet.LedgerChange
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].UserID == userID {
			mine = append(mine, m.changes[i])
		}
	}
	total := int64(len(mine))
	if offset >= len(mine) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (m *Memory) ListUserIDsWithRollover(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, w := range m.wallets {
		if w.BonusRollover.IsPositive() || w.DepositRollover.IsPositive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
