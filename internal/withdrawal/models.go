package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusCanceled Status = "canceled"
)

// Restores reports whether entering s gives the reserved funds back.
func (s Status) Restores() bool {
	return s == StatusRejected || s == StatusCanceled
}

type Withdrawal struct {
	WithdrawalID    string          `gorm:"column:withdrawal_id;primaryKey;type:uuid" json:"withdrawal_id"`
	UserID          string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency        string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	DestinationKey  string          `gorm:"column:pix_key;type:varchar(255);not null" json:"pix_key"`
	DestinationType string          `gorm:"column:pix_type;type:varchar(32);not null" json:"pix_type"`
	Status          Status          `gorm:"column:status;type:varchar(20);not null;index:idx_withdrawal_status_created" json:"status"`
	Proof           string          `gorm:"column:proof;type:text" json:"proof,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null;index:idx_withdrawal_status_created" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

type Request struct {
	UserID          string          `json:"-"`
	Amount          decimal.Decimal `json:"amount"`
	DestinationKey  string          `json:"pix_key"`
	DestinationType string          `json:"pix_type"`
}

type Filter struct {
	UserID string
	Status Status
}

type Page struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
	Total       int64        `json:"total"`
	Page        int          `json:"page"`
	Limit       int          `json:"limit"`
}

type Aggregate struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type Stats struct {
	Approved      Aggregate `json:"approved"`
	ApprovedToday Aggregate `json:"approved_today"`
	PendingCount  int64     `json:"pending_count"`
}
