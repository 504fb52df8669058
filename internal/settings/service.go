package settings

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wallet_ledger/internal/apperr"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
)

type Service struct {
	repo      Repository
	rescaler  *Rescaler
	publisher events.Publisher
	log       *logger.Logger
}

func NewService(repo Repository, rescaler *Rescaler, publisher events.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{repo: repo, rescaler: rescaler, publisher: publisher, log: log}
}

func (s *Service) Get(ctx context.Context) (*Setting, error) {
	return s.repo.Get(ctx)
}

// GetShared reads the settings inside tx and keeps them from changing until tx ends.
func (s *Service) GetShared(ctx context.Context, tx *gorm.DB) (*Setting, error) {
	return s.repo.GetShared(ctx, tx)
}

// Update applies an admin patch. A changed rollover multiplier triggers a
// rescale of every outstanding requirement after the new settings commit.
func (s *Service) Update(ctx context.Context, patch Patch) (*UpdateResult, error) {
	before, after, err := s.repo.Update(ctx, func(st *Setting) error {
		return patch.apply(st)
	})
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{Settings: &after}
	if before.RolloverMultiplier.Equal(after.RolloverMultiplier) || s.rescaler == nil {
		return result, nil
	}

	summary, err := s.rescaler.Run(ctx, before.RolloverMultiplier, after.RolloverMultiplier)
	if err != nil {
		s.log.Errorf("settings saved but rollover rescale failed: %v", err)
		return result, nil
	}
	result.Rescale = summary

	if !summary.Skipped {
		if err := s.publisher.Publish(ctx, events.Event{
			Type:       events.SettingsRescaled,
			Ref:        before.RolloverMultiplier.String() + "->" + after.RolloverMultiplier.String(),
			Amount:     decimal.NewFromInt(int64(summary.Updated)),
			OccurredAt: after.UpdatedAt,
		}); err != nil {
			s.log.Errorf("failed to publish %s: %v", events.SettingsRescaled, err)
		}
	}
	return result, nil
}

func (p Patch) apply(s *Setting) error {
	if p.CurrencyCode != nil && *p.CurrencyCode != "" {
		s.CurrencyCode = *p.CurrencyCode
	}
	if p.Prefix != nil && *p.Prefix != "" {
		s.Prefix = *p.Prefix
	}
	set := func(dst *decimal.Decimal, v *decimal.Decimal, name string) error {
		if v == nil {
			return nil
		}
		if v.IsNegative() {
			return apperr.Validation("%s must not be negative", name)
		}
		*dst = *v
		return nil
	}
	fields := []struct {
		dst  *decimal.Decimal
		v    *decimal.Decimal
		name string
	}{
		{&s.MinDeposit, p.MinDeposit, "min_deposit"},
		{&s.MaxDeposit, p.MaxDeposit, "max_deposit"},
		{&s.MinWithdrawal, p.MinWithdrawal, "min_withdrawal"},
		{&s.MaxWithdrawal, p.MaxWithdrawal, "max_withdrawal"},
		{&s.DepositBonus, p.DepositBonus, "deposit_bonus"},
		{&s.RolloverMultiplier, p.RolloverMultiplier, "rollover_multiplier"},
	}
	for _, f := range fields {
		if err := set(f.dst, f.v, f.name); err != nil {
			return err
		}
	}
	if s.MinDeposit.GreaterThan(s.MaxDeposit) {
		return apperr.Validation("min_deposit %s exceeds max_deposit %s", s.MinDeposit, s.MaxDeposit)
	}
	if s.MinWithdrawal.GreaterThan(s.MaxWithdrawal) {
		return apperr.Validation("min_withdrawal %s exceeds max_withdrawal %s", s.MinWithdrawal, s.MaxWithdrawal)
	}
	return nil
}
