package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	d, err := ParseNumeric("1250.5")
	require.NoError(t, err)
	assert.Equal(t, "1250.50", Numeric(d))

	zero, err := ParseNumeric("")
	require.NoError(t, err)
	assert.True(t, zero.Equal(decimal.Zero))

	_, err = ParseNumeric("abc")
	require.Error(t, err)
}

func TestNumericSet(t *testing.T) {
	a, b := "1.10", "2.20"
	values, err := NumericSet(&a, nil, &b)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, "1.1", values[0].String())
	assert.True(t, values[1].IsZero())
	assert.Equal(t, "2.2", values[2].String())
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_code_key"})
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "accounts_code_key"))
	assert.False(t, IsUniqueViolation(err, "journals_number_key"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}
