package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/rollover"
	"wallet_ledger/internal/wallet"
)

type Wallets interface {
	Find(ctx context.Context, userID string) (*wallet.Wallet, error)
	Update(ctx context.Context, userID string, fn wallet.UpdateFunc) (*wallet.Wallet, error)
}

type Options struct {
	// Dedupe replays the journaled balance for a reference already settled
	// for the same user instead of applying it again.
	Dedupe bool
}

type Processor struct {
	wallets   Wallets
	rollovers rollover.EventRepository
	records   Repository
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	opts      Options
}

func NewProcessor(
	wallets Wallets,
	rollovers rollover.EventRepository,
	records Repository,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) *Processor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Processor{
		wallets:   wallets,
		rollovers: rollovers,
		records:   records,
		publisher: publisher,
		metrics:   m,
		log:       log,
		opts:      opts,
	}
}

// Balance returns main + bonus. A non-positive balance is reported as
// InsufficientFunds carrying the balance itself.
func (p *Processor) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := p.wallets.Find(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := w.PlayableBalance()
	if !balance.IsPositive() {
		return balance, apperr.InsufficientFunds(balance, "user has no playable balance")
	}
	return balance, nil
}

// Settle applies one bet/win report to the user's wallet atomically.
func (p *Processor) Settle(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" || req.SettlementRef == "" {
		return nil, apperr.Validation("user and settlement reference are required")
	}
	if req.Bet.IsNegative() || req.Win.IsNegative() {
		return nil, apperr.Validation("bet and win amounts must not be negative")
	}
	if err := wallet.CheckCents(req.Bet); err != nil {
		return nil, err
	}
	if err := wallet.CheckCents(req.Win); err != nil {
		return nil, err
	}

	var (
		replay    *Record
		completed bool
	)
	w, err := p.wallets.Update(ctx, req.UserID, func(tx *gorm.DB, l *wallet.Ledger) error {
		replay, completed = nil, false

		if p.opts.Dedupe {
			rec, findErr := p.records.FindByRef(ctx, tx, req.UserID, req.SettlementRef)
			if findErr == nil {
				replay = rec
				return nil
			}
			if !errors.Is(findErr, ErrRecordNotFound) {
				return findErr
			}
		}

		res, applyErr := apply(l, req)
		if applyErr != nil {
			return applyErr
		}
		completed = res.JustSatisfied

		if createErr := p.rollovers.CreateEvents(ctx, tx, res.Events); createErr != nil {
			return createErr
		}
		after := l.Wallet()
		return p.records.Create(ctx, tx, &Record{
			RecordID:          uuid.NewString(),
			SettlementRef:     req.SettlementRef,
			UserID:            req.UserID,
			GameRef:           req.GameRef,
			BetAmount:         req.Bet,
			WinAmount:         req.Win,
			BalanceAfter:      after.PlayableBalance(),
			RolloverCompleted: res.JustSatisfied,
			CreatedAt:         l.Now(),
		})
	})
	p.metrics.ObserveSettlement(req.Bet, req.Win, err)
	if err != nil {
		return nil, err
	}

	if replay != nil {
		p.log.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"ref":     req.SettlementRef,
		}).Warn("settlement already processed, replaying recorded balance")
		return &Result{Balance: replay.BalanceAfter, SettlementRef: req.SettlementRef, RolloverCompleted: replay.RolloverCompleted, Replayed: true}, nil
	}

	balance := w.PlayableBalance()
	p.log.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"ref":     req.SettlementRef,
		"game":    req.GameRef,
		"bet":     req.Bet.String(),
		"win":     req.Win.String(),
		"balance": balance.String(),
	}).Info("settlement applied")

	p.publish(ctx, events.Event{
		Type:       events.SettlementProcessed,
		UserID:     req.UserID,
		Ref:        req.SettlementRef,
		Amount:     req.Win.Sub(req.Bet),
		Balance:    balance,
		OccurredAt: w.UpdatedAt,
	})
	if completed {
		p.metrics.ObserveRolloverCompleted()
		p.log.WithFields(logrus.Fields{
			"user_id":      req.UserID,
			"withdrawable": w.Withdrawable.String(),
		}).Info("rollover completed, funds unlocked")
		p.publish(ctx, events.Event{
			Type:       events.RolloverCompleted,
			UserID:     req.UserID,
			Ref:        req.SettlementRef,
			Amount:     w.Withdrawable,
			Balance:    balance,
			OccurredAt: w.UpdatedAt,
		})
	}

	return &Result{Balance: balance, SettlementRef: req.SettlementRef, RolloverCompleted: completed}, nil
}

// apply runs the bet, rollover and win steps against the locked wallet.
func apply(l *wallet.Ledger, req Request) (rollover.Result, error) {
	before := l.Wallet()
	hadRequirement := rollover.HasRequirement(before)
	bet, win := req.Bet, req.Win

	if bet.IsPositive() {
		playable := before.PlayableBalance()
		if playable.LessThan(bet) {
			return rollover.Result{}, apperr.InsufficientFunds(bet.Sub(playable), "insufficient balance for bet of %s", bet.StringFixed(2))
		}
		fromBonus := decimal.Min(before.Bonus, bet)
		fromMain := bet.Sub(fromBonus)
		reason := "bet " + req.SettlementRef
		if err := l.Debit(wallet.PoolBonus, fromBonus, reason); err != nil {
			return rollover.Result{}, err
		}
		if err := l.Debit(wallet.PoolMain, fromMain, reason); err != nil {
			return rollover.Result{}, err
		}
		if fromMain.IsPositive() && !hadRequirement {
			unlocked := decimal.Min(fromMain, l.Balance(wallet.PoolWithdrawable))
			if err := l.Debit(wallet.PoolWithdrawable, unlocked, reason); err != nil {
				return rollover.Result{}, err
			}
		}
	}

	res, err := rollover.ApplyBet(l, bet, req.GameRef, req.SettlementRef)
	if err != nil {
		return res, err
	}
	if res.JustSatisfied {
		if _, err := l.TransferAll(wallet.PoolMain, wallet.PoolWithdrawable, "rollover completed by "+req.SettlementRef); err != nil {
			return res, err
		}
	}

	if win.IsPositive() {
		reason := "win " + req.SettlementRef
		if err := l.Credit(wallet.PoolMain, win, reason); err != nil {
			return res, err
		}
		if !rollover.HasRequirement(l.Wallet()) {
			if err := l.Credit(wallet.PoolWithdrawable, win, reason); err != nil {
				return res, err
			}
		}
	}

	lose := decimal.Zero
	if !win.IsPositive() {
		lose = bet
	}
	l.AddCounters(bet, win, lose)
	return res, nil
}

func (p *Processor) publish(ctx context.Context, e events.Event) {
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.log.WithFields(logrus.Fields{
			"event":   e.Type,
			"user_id": e.UserID,
		}).Errorf("failed to publish event: %v", err)
	}
}
