package rollover

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindBonus   Kind = "bonus"
	KindDeposit Kind = "deposit"
)

// Event is the append-only record of one requirement reduction.
type Event struct {
	EventID        string          `gorm:"column:event_id;primaryKey;type:uuid" json:"event_id"`
	UserID         string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	BetAmount      decimal.Decimal `gorm:"column:bet_amount;type:numeric(20,2);not null" json:"bet_amount"`
	RolloverBefore decimal.Decimal `gorm:"column:rollover_before;type:numeric(20,2);not null" json:"rollover_before"`
	RolloverAfter  decimal.Decimal `gorm:"column:rollover_after;type:numeric(20,2);not null" json:"rollover_after"`
	Kind           Kind            `gorm:"column:rollover_type;type:varchar(20);not null" json:"rollover_type"`
	GameRef        string          `gorm:"column:game_code;type:varchar(255)" json:"game_code"`
	SettlementRef  string          `gorm:"column:settlement_ref;type:varchar(255)" json:"settlement_ref"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

func (Event) TableName() string {
	return "rollover_events"
}

// Result describes what a bet did to a wallet's wagering requirements.
type Result struct {
	HadRequirement bool
	JustSatisfied  bool
	Events         []Event
}

type Progress struct {
	BonusRollover   decimal.Decimal `json:"bonus_rollover"`
	DepositRollover decimal.Decimal `json:"deposit_rollover"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	Completed       bool            `json:"completed"`
}

type EventPage struct {
	Events []Event `json:"events"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
