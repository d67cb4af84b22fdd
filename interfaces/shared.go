package interfaces

import (
	"context"

	"margin_bot/models"

	"github.com/shopspring/decimal"
)

// OrderSide mirrors the exchange order side
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// SideEffect is the loan behaviour attached to a margin order
type SideEffect string

const (
	SideEffectAutoBorrow SideEffect = "MARGIN_BUY"
	SideEffectAutoRepay  SideEffect = "AUTO_REPAY"
)

// MarketOrder is a market order against an isolated margin account.
// Exactly one of Quantity or QuoteQuantity is set.
type MarketOrder struct {
	Symbol        string
	Side          OrderSide
	Quantity      decimal.Decimal
	QuoteQuantity decimal.Decimal
	SideEffect    SideEffect
}

// OrderResult is what the exchange reports back for a filled market order
type OrderResult struct {
	OrderID       int64
	ExecutedQty   decimal.Decimal
	QuoteQuantity decimal.Decimal
	Status        string
}

// MarginExchange defines the remote account operations the runner needs
type MarginExchange interface {
	SyncServerTime(ctx context.Context) (int64, error)
	SpotFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	IsolatedMarginSnapshot(ctx context.Context, symbol string) (*models.MarginSnapshot, error)
	LotSize(ctx context.Context, symbol string) (models.LotSize, error)
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	EnableIsolatedAccount(ctx context.Context, symbol string) error
	TransferSpotToMargin(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error)
	TransferMarginToSpot(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error)
	RepayLoan(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error)
	PlaceMarginMarketOrder(ctx context.Context, order MarketOrder) (*OrderResult, error)
}

// Journal records what a run did to the account
type Journal interface {
	LogRun(summary models.RunSummary) error
	LogTransfer(runID, symbol, asset, direction string, amount decimal.Decimal, tranID int64) error
	LogRepay(runID, symbol, asset string, amount decimal.Decimal, tranID int64) error
	LogDust(runID, symbol string, entry models.DustEntry) error
	LogCycle(runID, symbol string, cycle int, outcome string) error
}

// RunLedger reads back what a run journaled
type RunLedger interface {
	TransferredTotal(runID, asset, direction string) (decimal.Decimal, error)
	DustEntries(runID string) ([]models.DustEntry, error)
	CycleOutcomes(runID string) (map[string]int, error)
}

// Prompter asks the operator a yes/no question
type Prompter interface {
	Confirm(question string) (bool, error)
}
