package wallet

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool selects one numeric pool of a wallet.
type Pool uint8

const (
	PoolMain Pool = iota + 1
	PoolBonus
	PoolWithdrawable
	PoolBonusRollover
	PoolDepositRollover
)

var poolNames = map[Pool]string{
	PoolMain:            "main",
	PoolBonus:           "bonus",
	PoolWithdrawable:    "withdrawable",
	PoolBonusRollover:   "bonus_rollover",
	PoolDepositRollover: "deposit_rollover",
}

// subPoolOf lists pools whose value is a portion of another pool.
var subPoolOf = map[Pool]Pool{
	PoolWithdrawable: PoolMain,
}

func (p Pool) String() string {
	if name, ok := poolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pool(%d)", uint8(p))
}

func (p Pool) Valid() bool {
	_, ok := poolNames[p]
	return ok
}

// IsRollover reports whether the pool holds a wagering requirement rather than funds.
func (p Pool) IsRollover() bool {
	return p == PoolBonusRollover || p == PoolDepositRollover
}

func ParsePool(s string) (Pool, error) {
	for p, name := range poolNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown wallet pool %q", s)
}

func (p Pool) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid wallet pool %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Pool) UnmarshalText(b []byte) error {
	parsed, err := ParsePool(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Pool) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid wallet pool %d", uint8(p))
	}
	return p.String(), nil
}

func (p *Pool) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into wallet pool", src)
	}
}

// field maps a pool to the wallet column that stores it.
func (w *Wallet) field(p Pool) *decimal.Decimal {
	switch p {
	case PoolMain:
		return &w.Main
	case PoolBonus:
		return &w.Bonus
	case PoolWithdrawable:
		return &w.Withdrawable
	case PoolBonusRollover:
		return &w.BonusRollover
	case PoolDepositRollover:
		return &w.DepositRollover
	}
	panic(fmt.Sprintf("wallet: unmapped pool %d", uint8(p)))
}

// Balance returns the current value of a pool.
func (w *Wallet) Balance(p Pool) decimal.Decimal {
	return *w.field(p)
}
