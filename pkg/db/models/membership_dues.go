package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipDues marks one member's period as paid. The row's existence is
// the paid state; deleting it reverts the period to unpaid.
type MembershipDues struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	MemberID      int64           `gorm:"column:member_id;not null;uniqueIndex:uq_membership_dues_period,priority:1"`
	PeriodYear    int             `gorm:"column:period_year;not null;uniqueIndex:uq_membership_dues_period,priority:2"`
	PeriodMonth   int             `gorm:"column:period_month;not null;uniqueIndex:uq_membership_dues_period,priority:3"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(15,2);not null"`
	PaidAt        time.Time       `gorm:"column:paid_at;not null"`
	ProofFilePath *string         `gorm:"column:proof_file_path;type:text"`
	Note          *string         `gorm:"column:note;type:text"`
	CreatedBy     int64           `gorm:"column:created_by;not null"`
	UpdatedBy     *int64          `gorm:"column:updated_by"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (MembershipDues) TableName() string { return "membership_dues" }

// All lists every model owned by this service, in creation order.
func All() []any {
	return []any{&CashBalance{}, &HistoryBalance{}, &MembershipDues{}}
}
