package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/payment"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/wallet"
)

var hundred = decimal.NewFromInt(100)

type Gateway interface {
	GenerateQR(ctx context.Context, req payment.QRRequest) (*payment.QRCode, error)
	Verify(ctx context.Context, externalRef string) (*payment.Verification, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (*settings.Setting, error)
	GetShared(ctx context.Context, tx *gorm.DB) (*settings.Setting, error)
}

type Wallets interface {
	Find(ctx context.Context, userID string) (*wallet.Wallet, error)
	Update(ctx context.Context, userID string, fn wallet.UpdateFunc) (*wallet.Wallet, error)
}

type Service struct {
	repo      Repository
	wallets   Wallets
	settings  SettingsReader
	gateway   Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	log       *logger.Logger
}

func NewService(
	repo Repository,
	wallets Wallets,
	settingsReader SettingsReader,
	gateway Gateway,
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
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		clock:     clk,
		log:       log,
	}
}

// NewExternalRef builds the reference shared with the payment gateway.
func NewExternalRef(userID string, at time.Time) string {
	return fmt.Sprintf("DEP_%s_%d_%d", userID, at.UnixMilli(), rand.IntN(9999))
}

// Create issues a payment intent and stores a Pending deposit. No row is
// written when the gateway fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("deposit amount must be positive")
	}
	if err := wallet.CheckCents(req.Amount); err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount.LessThan(st.MinDeposit) {
		return nil, apperr.Validation("minimum deposit is %s%s", st.Prefix, st.MinDeposit.StringFixed(2))
	}
	if req.Amount.GreaterThan(st.MaxDeposit) {
		return nil, apperr.Validation("maximum deposit is %s%s", st.Prefix, st.MaxDeposit.StringFixed(2))
	}
	w, err := s.wallets.Find(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ref := NewExternalRef(req.UserID, now)
	qr, err := s.gateway.GenerateQR(ctx, payment.QRRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		ExternalRef: ref,
		Description: fmt.Sprintf("Deposit - %s %s", st.Prefix, req.Amount.StringFixed(2)),
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUpstreamUnavailable {
			err = apperr.Upstream(err, "payment gateway unavailable")
		}
		return nil, err
	}

	d := &Deposit{
		DepositID:   uuid.NewString(),
		UserID:      req.UserID,
		ExternalRef: ref,
		Amount:      req.Amount,
		Currency:    w.Currency,
		AcceptBonus: req.AcceptBonus,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.metrics.ObserveDeposit(string(StatusPending))
	s.publish(ctx, events.DepositCreated, d)

	return &Created{Deposit: d, QRCode: qr.Payload, QRImage: qr.Image, ExpiresAt: qr.ExpiresAt}, nil
}

// Verify polls the gateway for a user's deposit and confirms it once paid.
func (s *Service) Verify(ctx context.Context, userID, ref string) (*Verification, error) {
	d, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrDepositNotFound
	}
	switch d.Status {
	case StatusConfirmed:
		return &Verification{Paid: true, Status: StatusConfirmed}, nil
	case StatusCanceled:
		return &Verification{Paid: false, Status: StatusCanceled}, nil
	}

	v, err := s.gateway.Verify(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !v.Paid {
		return &Verification{Paid: false, Status: StatusPending}, nil
	}
	confirmed, err := s.Confirm(ctx, d.DepositID)
	if err != nil {
		return nil, err
	}
	return &Verification{Paid: true, Status: confirmed.Status}, nil
}

// ConfirmByRef handles a verified gateway notification.
func (s *Service) ConfirmByRef(ctx context.Context, ref string) (*Deposit, error) {
	d, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Confirm(ctx, d.DepositID)
}

// Confirm credits the deposit exactly once. Confirming an already Confirmed
// deposit returns it unchanged; a Canceled deposit is InvalidState.
func (s *Service) Confirm(ctx context.Context, id string) (*Deposit, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusConfirmed {
		return d, nil
	}
	if d.Status == StatusCanceled {
		return nil, ErrNotPending
	}

	var (
		out     *Deposit
		applied bool
	)
	w, err := s.wallets.Update(ctx, d.UserID, func(tx *gorm.DB, l *wallet.Ledger) error {
		out, applied = nil, false

		locked, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		switch locked.Status {
		case StatusConfirmed:
			out = locked
			return nil
		case StatusCanceled:
			return ErrNotPending
		}

		// Read under the wallet lock so a multiplier change either waits for
		// this credit or is already visible to it.
		st, err := s.settings.GetShared(ctx, tx)
		if err != nil {
			return err
		}
		confirmed, err := s.repo.CountConfirmed(ctx, tx, locked.UserID)
		if err != nil {
			return err
		}
		if err := credit(l, locked, st, confirmed == 0); err != nil {
			return err
		}
		if err := s.repo.MarkConfirmed(ctx, tx, locked, l.Now()); err != nil {
			return err
		}
		out, applied = locked, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.metrics.ObserveDeposit(string(StatusConfirmed))
		s.log.WithFields(logrus.Fields{
			"user_id": out.UserID,
			"ref":     out.ExternalRef,
			"amount":  out.Amount.String(),
			"bonus":   out.BonusAmount.String(),
		}).Info("deposit confirmed")
		s.publishWithBalance(ctx, events.DepositConfirmed, out, w.TotalBalance())
	}
	return out, nil
}

// credit applies a confirmed deposit to the locked wallet.
func credit(l *wallet.Ledger, d *Deposit, st *settings.Setting, first bool) error {
	reason := "deposit " + d.ExternalRef
	multiplier := st.RolloverMultiplier

	// Requirements left from an older multiplier are brought to the current
	// one so every outstanding requirement on the wallet shares a multiplier.
	w := l.Wallet()
	if w.RolloverMultiplier.IsPositive() && !w.RolloverMultiplier.Equal(multiplier) && w.BonusRollover.IsPositive() {
		next := settings.Rescale(w.BonusRollover, w.RolloverMultiplier, multiplier)
		if err := l.Set(wallet.PoolBonusRollover, next, "bonus rollover rescaled for "+d.ExternalRef); err != nil {
			return err
		}
	}
	l.SetRolloverMultiplier(multiplier)

	if first && d.AcceptBonus && st.DepositBonus.IsPositive() {
		bonus := d.Amount.Mul(st.DepositBonus).Div(hundred).Round(2)
		if err := l.Credit(wallet.PoolBonus, bonus, "first deposit bonus "+d.ExternalRef); err != nil {
			return err
		}
		if err := l.Set(wallet.PoolBonusRollover, bonus.Mul(multiplier).Round(2), "bonus rollover "+d.ExternalRef); err != nil {
			return err
		}
		d.BonusAmount = bonus
	}
	if err := l.Set(wallet.PoolDepositRollover, d.Amount.Mul(multiplier).Round(2), "deposit rollover "+d.ExternalRef); err != nil {
		return err
	}
	if err := l.Credit(wallet.PoolMain, d.Amount, reason); err != nil {
		return err
	}
	return l.Credit(wallet.PoolWithdrawable, d.Amount, reason)
}

// Reject cancels a Pending deposit. Nothing was credited, so nothing is reversed.
func (s *Service) Reject(ctx context.Context, id string) (*Deposit, error) {
	d, err := s.repo.CancelPending(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDeposit(string(StatusCanceled))
	s.publish(ctx, events.DepositCanceled, d)
	return d, nil
}

// ExpirePending cancels up to limit deposits that stayed Pending past cutoff.
func (s *Service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	canceled, err := s.repo.CancelExpired(ctx, cutoff, limit, s.clock.Now())
	if err != nil {
		return 0, err
	}
	for i := range canceled {
		s.metrics.ObserveDeposit(string(StatusCanceled))
		s.publish(ctx, events.DepositCanceled, &canceled[i])
	}
	return len(canceled), nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, page, limit int) (*Page, error) {
	return s.list(ctx, Filter{UserID: userID}, page, limit)
}

func (s *Service) ListAll(ctx context.Context, status Status, page, limit int) (*Page, error) {
	switch status {
	case "", StatusPending, StatusConfirmed, StatusCanceled:
	default:
		return nil, apperr.Validation("unknown deposit status %q", status)
	}
	return s.list(ctx, Filter{Status: status}, page, limit)
}

func (s *Service) list(ctx context.Context, f Filter, page, limit int) (*Page, error) {
	page, limit = wallet.NormalizePage(page, limit)
	deposits, total, err := s.repo.List(ctx, f, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Deposits: deposits, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) publish(ctx context.Context, t events.Type, d *Deposit) {
	s.publishWithBalance(ctx, t, d, decimal.Zero)
}

func (s *Service) publishWithBalance(ctx context.Context, t events.Type, d *Deposit, balance decimal.Decimal) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       t,
		UserID:     d.UserID,
		Ref:        d.ExternalRef,
		Amount:     d.Amount,
		Balance:    balance,
		OccurredAt: d.UpdatedAt,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithFields(logrus.Fields{"event": t, "ref": d.ExternalRef}).Errorf("failed to publish event: %v", err)
	}
}
