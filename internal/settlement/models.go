package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is the journal row written for every processed provider callback.
type Record struct {
	RecordID          string          `gorm:"column:record_id;primaryKey;type:uuid"`
	SettlementRef     string          `gorm:"column:settlement_ref;type:varchar(255);not null;index:idx_settlement_user_ref"`
	UserID            string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_settlement_user_ref"`
	GameRef           string          `gorm:"column:game_code;type:varchar(255)"`
	BetAmount         decimal.Decimal `gorm:"column:bet_amount;type:numeric(20,2);not null;default:0"`
	WinAmount         decimal.Decimal `gorm:"column:win_amount;type:numeric(20,2);not null;default:0"`
	BalanceAfter      decimal.Decimal `gorm:"column:balance_after;type:numeric(20,2);not null"`
	RolloverCompleted bool            `gorm:"column:rollover_completed;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;not null;default:now()"`
}

func (Record) TableName() string {
	return "settlements"
}

type Request struct {
	UserID        string
	SettlementRef string
	GameRef       string
	Bet           decimal.Decimal
	Win           decimal.Decimal
}

type Result struct {
	Balance           decimal.Decimal
	SettlementRef     string
	RolloverCompleted bool
	// Replayed is set when the reference was already journaled and dedupe is on.
	Replayed bool
}

// Provider wire format, always answered with HTTP 200.

const (
	StatusFailure = 0
	StatusSuccess = 1

	MsgSuccess           = "SUCCESS"
	MsgError             = "ERROR"
	MsgInsufficientFunds = "INSUFFICIENT_USER_FUNDS"
)

type BalanceRequest struct {
	UserCode string `json:"user_code"`
}

type CallbackRequest struct {
	UserCode      string          `json:"user_code"`
	TransactionID string          `json:"transaction_id"`
	BetAmount     decimal.Decimal `json:"bet_amount"`
	WinAmount     decimal.Decimal `json:"win_amount"`
	GameCode      string          `json:"game_code"`
}

type Response struct {
	Status        int      `json:"status"`
	Msg           string   `json:"msg"`
	UserBalance   *float64 `json:"user_balance,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	Message       string   `json:"message,omitempty"`
}
