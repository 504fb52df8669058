package deposit

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
)

type Deposit struct {
	DepositID   string          `gorm:"column:deposit_id;primaryKey;type:uuid" json:"deposit_id"`
	UserID      string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	ExternalRef string          `gorm:"column:external_ref;type:varchar(128);not null;uniqueIndex" json:"external_ref"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency    string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	AcceptBonus bool            `gorm:"column:accept_bonus;not null;default:false" json:"accept_bonus"`
	BonusAmount decimal.Decimal `gorm:"column:bonus_amount;type:numeric(20,2);not null;default:0" json:"bonus_amount"`
	Status      Status          `gorm:"column:status;type:varchar(20);not null;index:idx_deposit_status_created" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index:idx_deposit_status_created" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Deposit) TableName() string {
	return "deposits"
}

type CreateRequest struct {
	UserID      string
	Amount      decimal.Decimal
	AcceptBonus bool
}

// Created is a new Pending deposit together with the charge the user pays.
type Created struct {
	Deposit   *Deposit   `json:"deposit"`
	QRCode    string     `json:"qrcode"`
	QRImage   string     `json:"qrcode_image"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Verification struct {
	Paid   bool   `json:"paid"`
	Status Status `json:"status"`
}

type Filter struct {
	UserID string
	Status Status
}

type Page struct {
	Deposits []Deposit `json:"deposits"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
