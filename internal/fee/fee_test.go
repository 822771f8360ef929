package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestQuote_DefaultRate(t *testing.T) {
	p := DefaultTransferPolicy()

	q := p.Quote(decimal.NewFromInt(100))
	assert.Equal(t, "2.00", q.Fee.StringFixed(2))
	assert.Equal(t, "102.00", q.TotalDeduction.StringFixed(2))
}

func TestQuote_RoundsHalfUp(t *testing.T) {
	p := DefaultTransferPolicy()

	// 0.25 * 0.02 = 0.005 -> 0.01
	q := p.Quote(decimal.NewFromFloat(0.25))
	assert.Equal(t, "0.01", q.Fee.StringFixed(2))

	// 0.12 * 0.02 = 0.0024 -> 0.00
	q = p.Quote(decimal.NewFromFloat(0.12))
	assert.Equal(t, "0.00", q.Fee.StringFixed(2))

	// 123.45 * 0.02 = 2.469 -> 2.47
	q = p.Quote(decimal.NewFromFloat(123.45))
	assert.Equal(t, "2.47", q.Fee.StringFixed(2))
	assert.Equal(t, "125.92", q.TotalDeduction.StringFixed(2))
}

func TestQuote_Deterministic(t *testing.T) {
	p := Policy{Rate: decimal.NewFromFloat(0.015)}
	amt := decimal.NewFromFloat(333.33)

	first := p.Quote(amt)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Fee.Equal(p.Quote(amt).Fee))
	}
}
