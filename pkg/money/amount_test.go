package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"10000", nil},
		{"0.01", nil},
		{"25.50", nil},
		{"10.500", nil},
		{"9999999999999.99", nil},
		{"0", ErrNotPositive},
		{"-5", ErrNotPositive},
		{"0.001", ErrTooPrecise},
		{"12.345", ErrTooPrecise},
		{"1e14", ErrTooLarge},
		{"10000000000000", ErrTooLarge},
	}
	for _, tt := range tests {
		err := Check(decimal.RequireFromString(tt.raw))
		assert.True(t, errors.Is(err, tt.want), "%s: expected %v got %v", tt.raw, tt.want, err)
	}
}

func TestValidateIsValidationError(t *testing.T) {
	require.NoError(t, Validate("Value", decimal.NewFromInt(5)))

	err := Validate("Value", decimal.RequireFromString("0.001"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "Value must have at most 2 decimal places!", typed.Message())
	assert.Equal(t, map[string]string{"value": "must have at most 2 decimal places"}, typed.Details())
	assert.ErrorIs(t, err, ErrTooPrecise)
}
