package models

import (
	"margin_bot/policy"

	"github.com/shopspring/decimal"
)

// TradingPair represents a single isolated margin pair configuration
type TradingPair struct {
	Symbol         string
	BaseAsset      string
	QuoteAsset     string
	TransferAsset  string
	TransferAmount decimal.Decimal
}

func NewTradingPair(symbol string, transferAmount decimal.Decimal) TradingPair {
	base, quote := policy.SplitSymbol(symbol)
	return TradingPair{
		Symbol:         base + quote,
		BaseAsset:      base,
		QuoteAsset:     quote,
		TransferAsset:  policy.TransferAsset(symbol),
		TransferAmount: transferAmount,
	}
}

// DisplayName returns the pair as BASE/QUOTE
func (p TradingPair) DisplayName() string {
	return p.BaseAsset + "/" + p.QuoteAsset
}
