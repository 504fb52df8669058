package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	WalletID           string          `gorm:"column:wallet_id;primaryKey;type:uuid"`
	UserID             string          `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex"`
	Currency           string          `gorm:"column:currency;type:varchar(3);not null"`
	Main               decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null;default:0"`
	Bonus              decimal.Decimal `gorm:"column:balance_bonus;type:numeric(20,2);not null;default:0"`
	Withdrawable       decimal.Decimal `gorm:"column:balance_withdrawal;type:numeric(20,2);not null;default:0"`
	BonusRollover      decimal.Decimal `gorm:"column:balance_bonus_rollover;type:numeric(20,2);not null;default:0"`
	DepositRollover    decimal.Decimal `gorm:"column:balance_deposit_rollover;type:numeric(20,2);not null;default:0"`
	RolloverMultiplier decimal.Decimal `gorm:"column:rollover_multiplier;type:numeric(10,2);not null;default:0"`
	TotalBet           decimal.Decimal `gorm:"column:total_bet;type:numeric(20,2);not null;default:0"`
	TotalWon           decimal.Decimal `gorm:"column:total_won;type:numeric(20,2);not null;default:0"`
	TotalLose          decimal.Decimal `gorm:"column:total_lose;type:numeric(20,2);not null;default:0"`
	HideBalance        bool            `gorm:"column:hide_balance;not null;default:false"`
	Version            int             `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time       `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;not null;default:now()"`
}

// TotalBalance is main + bonus + withdrawable, the figure used for
// "can the user play at all" checks.
func (w *Wallet) TotalBalance() decimal.Decimal {
	return w.Main.Add(w.Bonus).Add(w.Withdrawable)
}

// PlayableBalance is main + bonus, the balance reported to the game provider.
func (w *Wallet) PlayableBalance() decimal.Decimal {
	return w.Main.Add(w.Bonus)
}

func (w *Wallet) TotalBalanceWithoutBonus() decimal.Decimal {
	return w.Main.Add(w.Withdrawable)
}

// LedgerChange is the append-only audit row for a single pool mutation.
type LedgerChange struct {
	ChangeID      string          `gorm:"column:change_id;primaryKey;type:uuid" json:"change_id"`
	UserID        string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Pool          Pool            `gorm:"column:pool;type:varchar(32);not null" json:"pool"`
	Delta         decimal.Decimal `gorm:"column:delta;type:numeric(20,2);not null" json:"delta"`
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:numeric(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"column:balance_after;type:numeric(20,2);not null" json:"balance_after"`
	Reason        string          `gorm:"column:reason;type:varchar(255);not null" json:"reason"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

type View struct {
	UserID                   string          `json:"user_id"`
	Currency                 string          `json:"currency"`
	Balance                  decimal.Decimal `json:"balance"`
	BalanceBonus             decimal.Decimal `json:"balance_bonus"`
	BalanceWithdrawal        decimal.Decimal `json:"balance_withdrawal"`
	BalanceBonusRollover     decimal.Decimal `json:"balance_bonus_rollover"`
	BalanceDepositRollover   decimal.Decimal `json:"balance_deposit_rollover"`
	TotalBet                 decimal.Decimal `json:"total_bet"`
	TotalWon                 decimal.Decimal `json:"total_won"`
	TotalLose                decimal.Decimal `json:"total_lose"`
	TotalBalance             decimal.Decimal `json:"total_balance"`
	TotalBalanceWithoutBonus decimal.Decimal `json:"total_balance_without_bonus"`
	HideBalance              bool            `json:"hide_balance"`
}

func NewView(w *Wallet) *View {
	return &View{
		UserID:                   w.UserID,
		Currency:                 w.Currency,
		Balance:                  w.Main,
		BalanceBonus:             w.Bonus,
		BalanceWithdrawal:        w.Withdrawable,
		BalanceBonusRollover:     w.BonusRollover,
		BalanceDepositRollover:   w.DepositRollover,
		TotalBet:                 w.TotalBet,
		TotalWon:                 w.TotalWon,
		TotalLose:                w.TotalLose,
		TotalBalance:             w.TotalBalance(),
		TotalBalanceWithoutBonus: w.TotalBalanceWithoutBonus(),
		HideBalance:              w.HideBalance,
	}
}

type ChangePage struct {
	Changes []LedgerChange `json:"changes"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}
