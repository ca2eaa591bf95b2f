package cashbalance

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/ptm-finance-backend/internal/repo"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/models"
	"github.com/angelmondragon/ptm-finance-backend/pkg/money"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeltaInput is one signed change to the running balance.
type DeltaInput struct {
	// Status true credits Value, false debits it.
	Status      bool
	Value       decimal.Decimal
	Description string
	CreatedBy   int64
}

// Signed returns the change as a signed amount.
func (in DeltaInput) Signed() decimal.Decimal {
	if in.Status {
		return in.Value
	}
	return in.Value.Neg()
}

// HistoryPage is one keyset page of ledger entries, newest first.
type HistoryPage struct {
	Items []models.HistoryBalance
	pagination.Meta
}

// Repository persists the running balance and its history.
type Repository interface {
	GetCurrentBalance(ctx context.Context) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, tx *gorm.DB, input DeltaInput) (decimal.Decimal, error)
	ListHistory(ctx context.Context, params pagination.Params) (HistoryPage, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a cash balance repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) GetCurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	var row models.CashBalance
	err := r.DB(ctx).Order("id ASC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}

// ApplyDelta updates the balance and appends the matching history entry
// inside tx. The table lock is held until tx ends, so concurrent callers
// (including two first-ever deltas) serialize on it.
func (r *repository) ApplyDelta(ctx context.Context, tx *gorm.DB, input DeltaInput) (decimal.Decimal, error) {
	if err := money.Check(input.Value); err != nil {
		return decimal.Zero, fmt.Errorf("delta value %s: %w", input.Value, err)
	}
	conn, err := r.Tx(ctx, tx)
	if err != nil {
		return decimal.Zero, err
	}

	// sqlite has no table locks; its single writer already serializes.
	if !db.IsSQLite(conn) {
		if err := conn.Exec("LOCK TABLE cash_balance IN EXCLUSIVE MODE").Error; err != nil {
			return decimal.Zero, fmt.Errorf("lock cash_balance: %w", err)
		}
	}

	delta := input.Signed()
	res := conn.Model(&models.CashBalance{}).
		Where("1 = 1").
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("increment balance: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		if err := conn.Create(&models.CashBalance{Balance: delta}).Error; err != nil {
			return decimal.Zero, fmt.Errorf("create balance: %w", err)
		}
	}
	// return what the column holds
	var row models.CashBalance
	if err := conn.Order("id ASC").Take(&row).Error; err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	balance := row.Balance

	entry := models.HistoryBalance{
		Status:      input.Status,
		Value:       input.Value,
		Description: input.Description,
		CreatedBy:   input.CreatedBy,
	}
	if err := conn.Create(&entry).Error; err != nil {
		return decimal.Zero, fmt.Errorf("append history: %w", err)
	}
	return balance, nil
}

func (r *repository) ListHistory(ctx context.Context, params pagination.Params) (HistoryPage, error) {
	q := r.DB(ctx).Model(&models.HistoryBalance{}).Order("id DESC").Limit(pagination.LimitWithBuffer(params.Limit))
	if params.Cursor != nil {
		q = q.Where("id < ?", *params.Cursor)
	}

	var rows []models.HistoryBalance
	if err := q.Find(&rows).Error; err != nil {
		return HistoryPage{}, err
	}

	items, meta := pagination.Trim(rows, params.Limit, func(h models.HistoryBalance) int64 { return h.ID })
	return HistoryPage{Items: items, Meta: meta}, nil
}
