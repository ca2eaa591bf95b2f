package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashBalance is the singleton running balance. It is created lazily by the
// first applied delta and never deleted.
type CashBalance struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(15,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CashBalance) TableName() string { return "cash_balance" }

// HistoryBalance is one append-only ledger entry. Status true is an inflow,
// false an outflow; Value is always the positive magnitude.
type HistoryBalance struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Status      bool            `gorm:"column:status;not null"`
	Value       decimal.Decimal `gorm:"column:value;type:numeric(15,2);not null"`
	Description string          `gorm:"column:description;type:text;not null"`
	CreatedBy   int64           `gorm:"column:created_by;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (HistoryBalance) TableName() string { return "history_balance" }

// Signed returns the delta this entry applied to the balance.
func (h HistoryBalance) Signed() decimal.Decimal {
	if h.Status {
		return h.Value
	}
	return h.Value.Neg()
}
