// Package events carries wallet domain events out of the service after the
// owning transaction has committed.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	SettlementProcessed Type = "settlement.processed"
	RolloverCompleted   Type = "rollover.completed"
	DepositCreated      Type = "deposit.created"
	DepositConfirmed    Type = "deposit.confirmed"
	DepositCanceled     Type = "deposit.canceled"
	WithdrawalRequested Type = "withdrawal.requested"
	WithdrawalApproved  Type = "withdrawal.approved"
	WithdrawalRejected  Type = "withdrawal.rejected"
	WithdrawalCanceled  Type = "withdrawal.canceled"
	SettingsRescaled    Type = "settings.rescaled"
)

type Event struct {
	Type       Type            `json:"type"`
	UserID     string          `json:"user_id,omitempty"`
	Ref        string          `json:"ref,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher in order and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
