package rollover

import (
	"context"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/wallet"
)

type WalletReader interface {
	Find(ctx context.Context, userID string) (*wallet.Wallet, error)
}

type Service struct {
	wallets WalletReader
	events  EventRepository
}

func NewService(wallets WalletReader, events EventRepository) *Service {
	return &Service{wallets: wallets, events: events}
}

// RequirementOutstanding returns bonusRollover + depositRollover for the user.
func (s *Service) RequirementOutstanding(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := s.wallets.Find(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return Outstanding(*w), nil
}

func (s *Service) Progress(ctx context.Context, userID string) (*Progress, error) {
	w, err := s.wallets.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	outstanding := Outstanding(*w)
	return &Progress{
		BonusRollover:   w.BonusRollover,
		DepositRollover: w.DepositRollover,
		Outstanding:     outstanding,
		Completed:       !outstanding.IsPositive(),
	}, nil
}

func (s *Service) History(ctx context.Context, userID string, page, limit int) (*EventPage, error) {
	page, limit = wallet.NormalizePage(page, limit)
	events, total, err := s.events.ListEvents(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &EventPage{Events: events, Total: total, Page: page, Limit: limit}, nil
}
