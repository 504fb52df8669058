package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/apperr"
)

// Ledger applies mutations to one locked wallet and collects the audit rows
// that must be persisted with them. It is not safe for concurrent use; the
// repository hands out one Ledger per locked wallet row.
type Ledger struct {
	w       *Wallet
	now     time.Time
	changes []LedgerChange
	dirty   bool
}

func NewLedger(w *Wallet, now time.Time) *Ledger {
	return &Ledger{w: w, now: now}
}

// Wallet returns a copy of the wallet's current in-transaction state.
func (l *Ledger) Wallet() Wallet {
	return *l.w
}

func (l *Ledger) UserID() string {
	return l.w.UserID
}

func (l *Ledger) Balance(p Pool) decimal.Decimal {
	return l.w.Balance(p)
}

func (l *Ledger) Now() time.Time {
	return l.now
}

func (l *Ledger) Credit(p Pool, amount decimal.Decimal, reason string) error {
	if err := checkAmount(p, amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	l.apply(p, l.w.Balance(p).Add(amount), reason)
	return nil
}

// Debit fails without touching the pool if amount exceeds its value.
func (l *Ledger) Debit(p Pool, amount decimal.Decimal, reason string) error {
	if err := checkAmount(p, amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	current := l.w.Balance(p)
	if amount.GreaterThan(current) {
		return apperr.InsufficientFunds(amount.Sub(current),
			"insufficient %s balance: available %s, requested %s", p, current.StringFixed(2), amount.StringFixed(2))
	}
	l.apply(p, current.Sub(amount), reason)
	return nil
}

// Set overwrites a pool with an absolute value, used for rollover requirements.
func (l *Ledger) Set(p Pool, value decimal.Decimal, reason string) error {
	if err := checkAmount(p, value); err != nil {
		return err
	}
	l.apply(p, value, reason)
	return nil
}

// TransferAll moves the whole value of from into to. When to is a portion of
// from (withdrawable inside main) the whole of from is marked as to instead,
// leaving from untouched. It returns the amount that landed in to.
func (l *Ledger) TransferAll(from, to Pool, reason string) (decimal.Decimal, error) {
	if !from.Valid() || !to.Valid() || from == to {
		return decimal.Zero, apperr.Validation("cannot transfer from %s to %s", from, to)
	}
	amount := l.w.Balance(from)
	if parent, ok := subPoolOf[to]; ok && parent == from {
		delta := amount.Sub(l.w.Balance(to))
		l.apply(to, amount, reason)
		return delta, nil
	}
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	l.apply(from, decimal.Zero, reason)
	l.apply(to, l.w.Balance(to).Add(amount), reason)
	return amount, nil
}

// SetRolloverMultiplier records the multiplier the outstanding requirements
// were computed with.
func (l *Ledger) SetRolloverMultiplier(m decimal.Decimal) {
	if m.Equal(l.w.RolloverMultiplier) {
		return
	}
	l.w.RolloverMultiplier = m
	l.dirty = true
}

// AddCounters bumps the lifetime bet/won/lose totals.
func (l *Ledger) AddCounters(bet, won, lose decimal.Decimal) {
	if bet.IsPositive() {
		l.w.TotalBet = l.w.TotalBet.Add(bet)
		l.dirty = true
	}
	if won.IsPositive() {
		l.w.TotalWon = l.w.TotalWon.Add(won)
		l.dirty = true
	}
	if lose.IsPositive() {
		l.w.TotalLose = l.w.TotalLose.Add(lose)
		l.dirty = true
	}
}

func (l *Ledger) ToggleHideBalance() bool {
	l.w.HideBalance = !l.w.HideBalance
	l.dirty = true
	return l.w.HideBalance
}

// Changes returns the audit rows collected so far.
func (l *Ledger) Changes() []LedgerChange {
	out := make([]LedgerChange, len(l.changes))
	copy(out, l.changes)
	return out
}

func (l *Ledger) Dirty() bool {
	return l.dirty
}

func (l *Ledger) apply(p Pool, next decimal.Decimal, reason string) {
	before := l.w.Balance(p)
	if next.Equal(before) {
		return
	}
	*l.w.field(p) = next
	l.dirty = true
	l.changes = append(l.changes, LedgerChange{
		ChangeID:      uuid.NewString(),
		UserID:        l.w.UserID,
		Pool:          p,
		Delta:         next.Sub(before),
		BalanceBefore: before,
		BalanceAfter:  next,
		Reason:        reason,
		CreatedAt:     l.now,
	})
}

func checkAmount(p Pool, amount decimal.Decimal) error {
	if !p.Valid() {
		return apperr.Validation("unknown wallet pool %s", p)
	}
	if amount.IsNegative() {
		return apperr.Validation("amount must not be negative, got %s", amount)
	}
	return CheckCents(amount)
}

// CheckCents rejects amounts finer than the two decimal places every pool
// column stores.
func CheckCents(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return apperr.Validation("amount %s has more than 2 decimal places", amount)
	}
	return nil
}
