package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLotSizeAdjust(t *testing.T) {
	lot := LotSize{MinQty: d("0.00001"), MaxQty: d("9000"), StepSize: d("0.00001")}

	assert.True(t, d("0.12345").Equal(lot.Adjust(d("0.123456789"), 5)))
	assert.True(t, d("0.1234").Equal(lot.Adjust(d("0.123456789"), 4)))

	coarse := LotSize{MinQty: d("0.01"), StepSize: d("0.01")}
	assert.True(t, d("1.23").Equal(coarse.Adjust(d("1.23999"), 5)))

	capped := LotSize{MinQty: d("1"), MaxQty: d("10"), StepSize: d("1")}
	assert.True(t, d("10").Equal(capped.Adjust(d("25.5"), 5)))
}

func TestLotSizeAdjustNeverExceedsInput(t *testing.T) {
	lot := LotSize{MinQty: d("0.001"), StepSize: d("0.001")}
	for _, s := range []string{"0.0019999", "5.55555", "0.001", "123.4567891"} {
		q := d(s)
		assert.True(t, lot.Adjust(q, 5).LessThanOrEqual(q), s)
	}
}

func TestLotSizeIsDust(t *testing.T) {
	lot := LotSize{MinQty: d("0.00001"), StepSize: d("0.00001")}
	assert.True(t, lot.IsDust(d("0.0000001")))
	assert.False(t, lot.IsDust(d("0.00001")))
}

func TestNewTradingPair(t *testing.T) {
	p := NewTradingPair("bnbbtc", d("0.5"))
	assert.Equal(t, "BNBBTC", p.Symbol)
	assert.Equal(t, "BNB", p.BaseAsset)
	assert.Equal(t, "BTC", p.QuoteAsset)
	assert.Equal(t, "BNB", p.TransferAsset)
	assert.Equal(t, "BNB/BTC", p.DisplayName())
}

func TestMarginSnapshotHasLoan(t *testing.T) {
	s := MarginSnapshot{BaseBorrowed: decimal.Zero, QuoteBorrowed: decimal.Zero}
	assert.False(t, s.HasLoan())
	s.QuoteBorrowed = d("0.1")
	assert.True(t, s.HasLoan())
}
