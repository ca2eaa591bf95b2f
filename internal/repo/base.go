package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNoTx is returned when a mutation is attempted without a transaction.
var ErrNoTx = errors.New("repo: mutation requires an open transaction")

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Reader picks tx when reading inside a transaction, the pool otherwise.
func (b Base) Reader(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return b.DB(ctx)
}

// Tx returns tx bound to ctx. Repositories call it at the top of every
// mutation so none of them can silently run outside the caller's unit of work.
func (b Base) Tx(ctx context.Context, tx *gorm.DB) (*gorm.DB, error) {
	if tx == nil {
		return nil, ErrNoTx
	}
	return tx.WithContext(ctx), nil
}
