// Package money holds the limits of the NUMERIC(15,2) amount columns.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
)

const (
	Scale         = 2
	IntegerDigits = 13
)

var (
	ErrNotPositive = errors.New("must be greater than 0")
	ErrTooPrecise  = errors.New("must have at most 2 decimal places")
	ErrTooLarge    = errors.New("must have at most 13 integer digits")
)

var upperBound = decimal.New(1, IntegerDigits)

// Check reports whether d can be stored as a positive amount without
// rounding or overflow.
func Check(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return ErrNotPositive
	case !d.Equal(d.Round(Scale)):
		return ErrTooPrecise
	case d.GreaterThanOrEqual(upperBound):
		return ErrTooLarge
	}
	return nil
}

// Validate wraps a Check failure as a validation error, e.g.
// "Value must have at most 2 decimal places!".
func Validate(label string, d decimal.Decimal) error {
	err := Check(d)
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, label+" "+err.Error()+"!").
		WithDetails(map[string]string{strings.ToLower(label): err.Error()})
}
