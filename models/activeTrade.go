package models

import "github.com/shopspring/decimal"

// ActiveTrade is a margin position opened by the runner in auto mode
type ActiveTrade struct {
	OrderID    int64           `json:"order_id" db:"order_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Side       string          `json:"side" db:"side"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	QuoteSpent decimal.Decimal `json:"quote_spent" db:"quote_spent"`
}
