package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarginSnapshot is a point-in-time read of an isolated margin account.
// It is never cached; callers re-fetch it whenever they need fresh numbers.
type MarginSnapshot struct {
	Symbol        string
	BaseAsset     string
	QuoteAsset    string
	BaseFree      decimal.Decimal
	QuoteFree     decimal.Decimal
	BaseBorrowed  decimal.Decimal
	QuoteBorrowed decimal.Decimal
	Timestamp     time.Time
}

// HasLoan reports whether either side of the account still owes the exchange
func (s *MarginSnapshot) HasLoan() bool {
	return s.BaseBorrowed.IsPositive() || s.QuoteBorrowed.IsPositive()
}
