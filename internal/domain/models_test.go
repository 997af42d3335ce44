package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	testData := []struct {
		name     string
		amount   float64
		expected int64
	}{
		{name: "whole", amount: 100, expected: 10000},
		{name: "cents", amount: 12.34, expected: 1234},
		{name: "float error rounds up", amount: 0.29, expected: 29},
		{name: "half rounds away from zero", amount: 0.005, expected: 1},
		{name: "sub cent rounds down", amount: 1.004, expected: 100},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			got, err := ToMinorUnits(testRun.amount)
			require.NoError(t, err)
			assert.Equal(t, testRun.expected, got)
			assert.InDelta(t, testRun.amount, FromMinorUnits(got), 0.006)
		})
	}
}

func TestToMinorUnits_givenNonFinite_thenError(t *testing.T) {
	_, err := ToMinorUnits(math.NaN())
	assert.ErrorIs(t, err, ErrAmountNotFinite)

	_, err = ToMinorUnits(math.Inf(1))
	assert.ErrorIs(t, err, ErrAmountNotFinite)

	_, err = ToMinorUnits(math.MaxFloat64 / 10)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestEmail(t *testing.T) {
	assert.True(t, ValidEmail("a.b+c@example.co"))
	assert.True(t, ValidEmail(NormalizeEmail("  USER_1%x@Sub.Example.ORG ")))

	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("@missing-local.com"))
	assert.False(t, ValidEmail("user@.com"))
	assert.False(t, ValidEmail("user@example.c"))
	assert.False(t, ValidEmail(""))

	assert.Equal(t, "user@example.com", NormalizeEmail(" User@Example.COM\t"))
}

func TestTransactionUpdate_Apply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	processed := created.Add(30 * time.Second)
	tx := Transaction{TransactionID: "txn_1", Status: StatusProcessing, CreatedAt: created, UpdatedAt: created}

	updated := TransactionUpdate{Status: StatusProcessed, ProcessedAt: &processed, UpdatedAt: processed}.Apply(tx)
	assert.Equal(t, StatusProcessed, updated.Status)
	require.NotNil(t, updated.ProcessedAt)
	assert.Equal(t, processed, *updated.ProcessedAt)
	assert.Equal(t, created, updated.CreatedAt)

	// compensating update keeps processed_at as is
	kept := TransactionUpdate{Status: StatusProcessing, UpdatedAt: processed}.Apply(tx)
	assert.Nil(t, kept.ProcessedAt)
	assert.Equal(t, StatusProcessing, kept.Status)
	assert.Equal(t, processed, kept.UpdatedAt)
}

func TestNewTransactionResponse(t *testing.T) {
	tx := &Transaction{TransactionID: "txn_1", Amount: 10050, Currency: "INR", Status: StatusProcessing}
	resp := NewTransactionResponse(tx)
	assert.InDelta(t, 100.50, resp.Amount, 1e-9)
	assert.Equal(t, "txn_1", resp.TransactionID)
}

func TestNewTransactionID(t *testing.T) {
	id := NewTransactionID()
	assert.Regexp(t, `^txn_[0-9a-f]{16}$`, id)
	assert.NotEqual(t, id, NewTransactionID())
}

func TestChartData_Complete(t *testing.T) {
	var nilData *ChartData
	assert.False(t, nilData.Complete())
	assert.False(t, (&ChartData{CallDuration: []ChartDataItem{}}).Complete())
	assert.True(t, (&ChartData{CallDuration: []ChartDataItem{}, SadPath: []ChartDataItem{}}).Complete())
	assert.True(t, (&ChartData{CallDuration: []ChartDataItem{{Name: "Mon"}}, SadPath: []ChartDataItem{}}).Complete())
	assert.False(t, (&ChartData{CallDuration: []ChartDataItem{{Name: ""}}, SadPath: []ChartDataItem{}}).Complete())
	assert.False(t, (&ChartData{CallDuration: []ChartDataItem{}, SadPath: []ChartDataItem{{Name: "  "}}}).Complete())
}
