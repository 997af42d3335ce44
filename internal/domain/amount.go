package domain

import (
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrAmountNotFinite   = errors.New("amount is not a finite number")
	ErrAmountOutOfRange  = errors.New("amount out of range")
	maxMinorUnitsAsFloat = float64(math.MaxInt64)
)

// ToMinorUnits converts a major-unit amount to minor units, rounding to the
// nearest integer.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrAmountNotFinite
	}
	minor := math.Round(amount * 100)
	if minor >= maxMinorUnitsAsFloat || minor <= -maxMinorUnitsAsFloat {
		return 0, ErrAmountOutOfRange
	}
	return int64(minor), nil
}

func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// NewTransactionID returns an identifier of the form txn_<16 hex chars>.
func NewTransactionID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "txn_" + hex[:16]
}
