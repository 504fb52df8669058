package withdrawal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/rollover"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/wallet"
)

type SettingsReader interface {
	Get(ctx context.Context) (*settings.Setting, error)
}

type Wallets interface {
	Update(ctx context.Context, userID string, fn wallet.UpdateFunc) (*wallet.Wallet, error)
}

type Service struct {
	repo      Repository
	wallets   Wallets
	settings  SettingsReader
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	log       *logger.Logger
}

func NewService(
	repo Repository,
	wallets Wallets,
	settingsReader SettingsReader,
	publisher events.Publisher,
	m *metrics.Metrics,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		wallets:   wallets,
		settings:  settingsReader,
		publisher: publisher,
		metrics:   m,
		clock:     clk,
		log:       log,
	}
}

// Request admits a payout and reserves its amount from withdrawable and main.
func (s *Service) Request(ctx context.Context, req Request) (*Withdrawal, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("withdrawal amount must be positive")
	}
	if err := wallet.CheckCents(req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.DestinationKey) == "" || strings.TrimSpace(req.DestinationType) == "" {
		return nil, apperr.Validation("payout destination is required")
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount.LessThan(st.MinWithdrawal) {
		return nil, apperr.Validation("minimum withdrawal is %s%s", st.Prefix, st.MinWithdrawal.StringFixed(2))
	}
	if req.Amount.GreaterThan(st.MaxWithdrawal) {
		return nil, apperr.Validation("maximum withdrawal is %s%s", st.Prefix, st.MaxWithdrawal.StringFixed(2))
	}

	var created *Withdrawal
	_, err = s.wallets.Update(ctx, req.UserID, func(tx *gorm.DB, l *wallet.Ledger) error {
		created = nil
		w := l.Wallet()

		if outstanding := rollover.Outstanding(w); outstanding.IsPositive() {
			return apperr.RolloverPending(outstanding)
		}
		if w.Withdrawable.LessThan(req.Amount) {
			return apperr.InsufficientFunds(req.Amount.Sub(w.Withdrawable),
				"withdrawable balance is %s%s", st.Prefix, w.Withdrawable.StringFixed(2))
		}

		wd := &Withdrawal{
			WithdrawalID:    uuid.NewString(),
			UserID:          req.UserID,
			Amount:          req.Amount,
			Currency:        w.Currency,
			DestinationKey:  req.DestinationKey,
			DestinationType: req.DestinationType,
			Status:          StatusPending,
			CreatedAt:       l.Now(),
			UpdatedAt:       l.Now(),
		}
		reason := "withdrawal request " + wd.WithdrawalID
		if err := l.Debit(wallet.PoolWithdrawable, req.Amount, reason); err != nil {
			return err
		}
		if err := l.Debit(wallet.PoolMain, req.Amount, reason); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, wd); err != nil {
			return err
		}
		created = wd
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveWithdrawal(string(StatusPending))
	s.log.WithFields(logrus.Fields{
		"user_id":       created.UserID,
		"withdrawal_id": created.WithdrawalID,
		"amount":        created.Amount.String(),
	}).Info("withdrawal requested")
	s.publish(ctx, events.WithdrawalRequested, created)
	return created, nil
}

// Approve finalizes a Pending withdrawal. The funds stay debited.
func (s *Service) Approve(ctx context.Context, id, proof string) (*Withdrawal, error) {
	wd, err := s.repo.Transition(ctx, nil, id, StatusApproved, proof, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveWithdrawal(string(StatusApproved))
	s.publish(ctx, events.WithdrawalApproved, wd)
	return wd, nil
}

func (s *Service) Reject(ctx context.Context, id string) (*Withdrawal, error) {
	return s.release(ctx, id, "", StatusRejected)
}

// Cancel lets a user withdraw their own Pending request.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Withdrawal, error) {
	return s.release(ctx, id, userID, StatusCanceled)
}

// release moves a Pending withdrawal to a restoring status and credits the
// reservation back in the same wallet transaction. The withdrawal row is
// locked after the wallet row, so the restoration happens at most once.
func (s *Service) release(ctx context.Context, id, owner string, to Status) (*Withdrawal, error) {
	if !to.Restores() {
		return nil, apperr.Validation("status %q does not release funds", to)
	}
	wd, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && wd.UserID != owner {
		return nil, ErrWithdrawalNotFound
	}
	if wd.Status != StatusPending {
		return nil, ErrNotPending
	}

	var released *Withdrawal
	_, err = s.wallets.Update(ctx, wd.UserID, func(tx *gorm.DB, l *wallet.Ledger) error {
		released = nil
		locked, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return ErrNotPending
		}
		moved, err := s.repo.Transition(ctx, tx, id, to, "", l.Now())
		if err != nil {
			return err
		}
		reason := "withdrawal " + string(to) + " " + id
		if err := l.Credit(wallet.PoolMain, locked.Amount, reason); err != nil {
			return err
		}
		if err := l.Credit(wallet.PoolWithdrawable, locked.Amount, reason); err != nil {
			return err
		}
		released = moved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveWithdrawal(string(to))
	s.log.WithFields(logrus.Fields{
		"user_id":       released.UserID,
		"withdrawal_id": released.WithdrawalID,
		"status":        to,
	}).Info("withdrawal released")
	if to == StatusRejected {
		s.publish(ctx, events.WithdrawalRejected, released)
	} else {
		s.publish(ctx, events.WithdrawalCanceled, released)
	}
	return released, nil
}

// ExpirePending cancels up to limit withdrawals that stayed Pending past
// cutoff, restoring each reservation. A request decided concurrently is skipped.
func (s *Service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	candidates, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	var (
		canceled int
		errs     []error
	)
	for _, wd := range candidates {
		if _, err := s.release(ctx, wd.WithdrawalID, "", StatusCanceled); err != nil {
			if errors.Is(err, ErrNotPending) {
				continue
			}
			s.log.WithField("withdrawal_id", wd.WithdrawalID).Errorf("failed to expire withdrawal: %v", err)
			errs = append(errs, err)
			continue
		}
		canceled++
	}
	return canceled, errors.Join(errs...)
}

func (s *Service) ListForUser(ctx context.Context, userID string, page, limit int) (*Page, error) {
	return s.list(ctx, Filter{UserID: userID}, page, limit)
}

func (s *Service) ListAll(ctx context.Context, status Status, page, limit int) (*Page, error) {
	switch status {
	case "", StatusPending, StatusApproved, StatusRejected, StatusCanceled:
	default:
		return nil, apperr.Validation("unknown withdrawal status %q", status)
	}
	return s.list(ctx, Filter{Status: status}, page, limit)
}

func (s *Service) list(ctx context.Context, f Filter, page, limit int) (*Page, error) {
	page, limit = wallet.NormalizePage(page, limit)
	out, total, err := s.repo.List(ctx, f, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Withdrawals: out, Total: total, Page: page, Limit: limit}, nil
}

// Stats aggregates approved payouts overall and since the start of today (UTC).
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	today := s.clock.Now().Truncate(24 * time.Hour)
	return s.repo.Stats(ctx, today)
}

func (s *Service) publish(ctx context.Context, t events.Type, wd *Withdrawal) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       t,
		UserID:     wd.UserID,
		Ref:        wd.WithdrawalID,
		Amount:     wd.Amount,
		OccurredAt: wd.UpdatedAt,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"event": t, "withdrawal_id": wd.WithdrawalID}).Errorf("failed to publish event: %v", err)
	}
}
