package rollover

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/wallet"
)

// Outstanding is the total wager volume still required before funds unlock.
func Outstanding(w wallet.Wallet) decimal.Decimal {
	return w.BonusRollover.Add(w.DepositRollover)
}

func HasRequirement(w wallet.Wallet) bool {
	return w.BonusRollover.IsPositive() || w.DepositRollover.IsPositive()
}

// ApplyBet reduces each outstanding requirement by the full bet amount,
// floored at zero. The bonus and deposit requirements are reduced
// independently, the bet is not split between them. JustSatisfied is true
// only when a requirement existed before the bet and none remains after it.
func ApplyBet(l *wallet.Ledger, bet decimal.Decimal, gameRef, settlementRef string) (Result, error) {
	w := l.Wallet()
	res := Result{HadRequirement: HasRequirement(w)}
	if !bet.IsPositive() {
		return res, nil
	}

	reduce := []struct {
		pool wallet.Pool
		kind Kind
	}{
		{wallet.PoolBonusRollover, KindBonus},
		{wallet.PoolDepositRollover, KindDeposit},
	}
	for _, r := range reduce {
		before := l.Balance(r.pool)
		if !before.IsPositive() {
			continue
		}
		after := decimal.Max(decimal.Zero, before.Sub(bet))
		if err := l.Set(r.pool, after, "rollover reduced by bet "+settlementRef); err != nil {
			return res, err
		}
		res.Events = append(res.Events, Event{
			EventID:        uuid.NewString(),
			UserID:         l.UserID(),
			BetAmount:      bet,
			RolloverBefore: before,
			RolloverAfter:  after,
			Kind:           r.kind,
			GameRef:        gameRef,
			SettlementRef:  settlementRef,
			CreatedAt:      l.Now(),
		})
	}

	res.JustSatisfied = res.HadRequirement && !HasRequirement(l.Wallet())
	return res, nil
}
