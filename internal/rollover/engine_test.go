package rollover

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_ledger/internal/wallet"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestApplyBetReducesBothRequirementsByFullBet(t *testing.T) {
	w := &wallet.Wallet{UserID: "u1", BonusRollover: d(30), DepositRollover: d(50)}
	l := wallet.NewLedger(w, now)

	res, err := ApplyBet(l, d(40), "fortune-tiger", "tx-1")
	require.NoError(t, err)

	assert.True(t, w.BonusRollover.IsZero(), "bonus rollover")
	assert.True(t, w.DepositRollover.Equal(d(10)), "deposit rollover")
	assert.True(t, res.HadRequirement)
	assert.False(t, res.JustSatisfied)

	require.Len(t, res.Events, 2)
	assert.Equal(t, KindBonus, res.Events[0].Kind)
	assert.True(t, res.Events[0].RolloverBefore.Equal(d(30)))
	assert.True(t, res.Events[0].RolloverAfter.IsZero())
	assert.Equal(t, KindDeposit, res.Events[1].Kind)
	assert.True(t, res.Events[1].RolloverBefore.Equal(d(50)))
	assert.True(t, res.Events[1].RolloverAfter.Equal(d(10)))
	for _, e := range res.Events {
		assert.True(t, e.BetAmount.Equal(d(40)))
		assert.Equal(t, "fortune-tiger", e.GameRef)
		assert.Equal(t, "u1", e.UserID)
	}
}

func TestApplyBetJustSatisfied(t *testing.T) {
	w := &wallet.Wallet{UserID: "u1", Main: d(200), BonusRollover: d(30)}
	l := wallet.NewLedger(w, now)

	res, err := ApplyBet(l, d(40), "g", "tx-1")
	require.NoError(t, err)

	assert.True(t, w.BonusRollover.IsZero())
	assert.True(t, res.JustSatisfied)
	require.Len(t, res.Events, 1)
	assert.Equal(t, KindBonus, res.Events[0].Kind)
}

func TestApplyBetWithoutRequirement(t *testing.T) {
	w := &wallet.Wallet{UserID: "u1", Main: d(200)}
	l := wallet.NewLedger(w, now)

	res, err := ApplyBet(l, d(40), "g", "tx-1")
	require.NoError(t, err)

	assert.False(t, res.HadRequirement)
	assert.False(t, res.JustSatisfied, "nothing was outstanding, nothing was satisfied")
	assert.Empty(t, res.Events)
	assert.False(t, l.Dirty())
}

func TestApplyBetZeroBetChangesNothing(t *testing.T) {
	w := &wallet.Wallet{UserID: "u1", DepositRollover: d(5)}
	l := wallet.NewLedger(w, now)

	res, err := ApplyBet(l, decimal.Zero, "g", "tx-1")
	require.NoError(t, err)

	assert.True(t, res.HadRequirement)
	assert.False(t, res.JustSatisfied)
	assert.True(t, w.DepositRollover.Equal(d(5)))
}

func TestApplyBetFloorsAtZero(t *testing.T) {
	w := &wallet.Wallet{UserID: "u1", DepositRollover: decimal.RequireFromString("12.50")}
	l := wallet.NewLedger(w, now)

	res, err := ApplyBet(l, d(100), "g", "tx-1")
	require.NoError(t, err)

	assert.True(t, w.DepositRollover.IsZero())
	assert.False(t, w.DepositRollover.IsNegative())
	assert.True(t, res.JustSatisfied)
}

func TestOutstanding(t *testing.T) {
	w := wallet.Wallet{BonusRollover: d(7), DepositRollover: d(3)}
	assert.True(t, Outstanding(w).Equal(d(10)))
	assert.True(t, HasRequirement(w))
	assert.False(t, HasRequirement(wallet.Wallet{}))
}
