package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

const settingsID = 1

// Setting is the single global configuration row.
type Setting struct {
	SettingID          uint            `gorm:"column:setting_id;primaryKey" json:"-"`
	CurrencyCode       string          `gorm:"column:currency_code;type:varchar(3);not null" json:"currency_code"`
	Prefix             string          `gorm:"column:prefix;type:varchar(8);not null" json:"prefix"`
	MinDeposit         decimal.Decimal `gorm:"column:min_deposit;type:numeric(20,2);not null" json:"min_deposit"`
	MaxDeposit         decimal.Decimal `gorm:"column:max_deposit;type:numeric(20,2);not null" json:"max_deposit"`
	MinWithdrawal      decimal.Decimal `gorm:"column:min_withdrawal;type:numeric(20,2);not null" json:"min_withdrawal"`
	MaxWithdrawal      decimal.Decimal `gorm:"column:max_withdrawal;type:numeric(20,2);not null" json:"max_withdrawal"`
	DepositBonus       decimal.Decimal `gorm:"column:deposit_bonus;type:numeric(10,2);not null;default:0" json:"deposit_bonus"`
	RolloverMultiplier decimal.Decimal `gorm:"column:rollover_multiplier;type:numeric(10,2);not null;default:0" json:"rollover_multiplier"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Defaults is the row created on first read.
func Defaults() Setting {
	return Setting{
		SettingID:          settingsID,
		CurrencyCode:       "BRL",
		Prefix:             "R$",
		MinDeposit:         decimal.NewFromInt(5),
		MaxDeposit:         decimal.NewFromInt(10000),
		MinWithdrawal:      decimal.NewFromInt(20),
		MaxWithdrawal:      decimal.NewFromInt(5000),
		DepositBonus:       decimal.Zero,
		RolloverMultiplier: decimal.Zero,
	}
}

// Patch is an admin update; nil fields keep their current value.
type Patch struct {
	CurrencyCode       *string          `json:"currency_code"`
	Prefix             *string          `json:"prefix"`
	MinDeposit         *decimal.Decimal `json:"min_deposit"`
	MaxDeposit         *decimal.Decimal `json:"max_deposit"`
	MinWithdrawal      *decimal.Decimal `json:"min_withdrawal"`
	MaxWithdrawal      *decimal.Decimal `json:"max_withdrawal"`
	DepositBonus       *decimal.Decimal `json:"deposit_bonus"`
	RolloverMultiplier *decimal.Decimal `json:"rollover_multiplier"`
}

// RescaleSummary reports a best-effort multiplier rescale.
type RescaleSummary struct {
	OldMultiplier decimal.Decimal `json:"old_multiplier"`
	NewMultiplier decimal.Decimal `json:"new_multiplier"`
	Candidates    int             `json:"candidates"`
	Updated       int             `json:"updated"`
	Failed        int             `json:"failed"`
	Skipped       bool            `json:"skipped"`
}

type UpdateResult struct {
	Settings *Setting        `json:"settings"`
	Rescale  *RescaleSummary `json:"rescale,omitempty"`
}
