package settings

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/wallet"
)

const rescaleConcurrency = 8

type RolloverWallets interface {
	UserIDsWithRollover(ctx context.Context) ([]string, error)
	Update(ctx context.Context, userID string, fn wallet.UpdateFunc) (*wallet.Wallet, error)
}

// Rescale converts an outstanding requirement from one multiplier to another:
// (value / oldMultiplier) * newMultiplier. A non-positive value or old
// multiplier leaves the value unchanged.
func Rescale(value, oldMultiplier, newMultiplier decimal.Decimal) decimal.Decimal {
	if !value.IsPositive() || !oldMultiplier.IsPositive() {
		return value
	}
	return value.Div(oldMultiplier).Mul(newMultiplier).Round(2)
}

type Rescaler struct {
	wallets RolloverWallets
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewRescaler(wallets RolloverWallets, m *metrics.Metrics, log *logger.Logger) *Rescaler {
	return &Rescaler{wallets: wallets, metrics: m, log: log}
}

// sourceMultiplier is the multiplier w's requirements were computed with.
// Wallets that never recorded one are taken to be at old.
func sourceMultiplier(w wallet.Wallet, old decimal.Decimal) decimal.Decimal {
	if w.RolloverMultiplier.IsPositive() {
		return w.RolloverMultiplier
	}
	return old
}

// Run rescales every wallet with an outstanding requirement. Each wallet is
// updated in its own transaction; a failing wallet is logged and counted.
func (r *Rescaler) Run(ctx context.Context, oldMultiplier, newMultiplier decimal.Decimal) (*RescaleSummary, error) {
	summary := &RescaleSummary{OldMultiplier: oldMultiplier, NewMultiplier: newMultiplier}
	if !oldMultiplier.IsPositive() {
		summary.Skipped = true
		r.log.WithFields(logrus.Fields{
			"old": oldMultiplier.String(),
			"new": newMultiplier.String(),
		}).Info("rollover rescale skipped, previous multiplier was not positive")
		return summary, nil
	}

	userIDs, err := r.wallets.UserIDsWithRollover(ctx)
	if err != nil {
		return nil, err
	}
	summary.Candidates = len(userIDs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rescaleConcurrency)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			_, err := r.wallets.Update(gctx, userID, func(_ *gorm.DB, l *wallet.Ledger) error {
				from := sourceMultiplier(l.Wallet(), oldMultiplier)
				if from.Equal(newMultiplier) {
					return nil
				}
				for _, p := range []wallet.Pool{wallet.PoolBonusRollover, wallet.PoolDepositRollover} {
					next := Rescale(l.Balance(p), from, newMultiplier)
					if err := l.Set(p, next, "rollover multiplier "+from.String()+"x -> "+newMultiplier.String()+"x"); err != nil {
						return err
					}
				}
				l.SetRolloverMultiplier(newMultiplier)
				return nil
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				r.log.WithField("user_id", userID).Errorf("failed to rescale rollover: %v", err)
				return nil
			}
			summary.Updated++
			return nil
		})
	}
	_ = g.Wait()

	r.metrics.ObserveRescale(summary.Updated, summary.Failed)
	r.log.WithFields(logrus.Fields{
		"old":        oldMultiplier.String(),
		"new":        newMultiplier.String(),
		"candidates": summary.Candidates,
		"updated":    summary.Updated,
		"failed":     summary.Failed,
	}).Info("rollover rescale finished")
	return summary, nil
}
