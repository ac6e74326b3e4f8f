package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextMonthlyCode(t *testing.T) {
	august := time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)

	code, err := NextMonthlyCode("TRF", august, "")
	require.NoError(t, err)
	require.Equal(t, "TRF-2608-0001", code)

	code, err = NextMonthlyCode("TRF", august, "TRF-2608-0041")
	require.NoError(t, err)
	require.Equal(t, "TRF-2608-0042", code)

	// Sequences past four digits keep incrementing without wrapping.
	code, err = NextMonthlyCode("INV", august, "INV-2608-9999")
	require.NoError(t, err)
	require.Equal(t, "INV-2608-10000", code)

	_, err = NextMonthlyCode("COR", august, "COR-2607-0003")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMonthlyCodePattern(t *testing.T) {
	december := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "SCR-2512-%", MonthlyCodePattern("SCR", december))
}
