package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"margin_bot/client"
	"margin_bot/interfaces"
	"margin_bot/models"
	"margin_bot/policy"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var errTooSmall = &common.APIError{Code: -3041, Message: "The amount is too small."}

// fakeExchange is an in-memory isolated margin account that records every call
type fakeExchange struct {
	calls []string

	spot      map[string]decimal.Decimal
	snapshots []*models.MarginSnapshot // consumed in order, last one repeats
	lot       models.LotSize
	price     decimal.Decimal

	enableErr     error
	transferInErr error
	repayErr      error
	orderErr      error
	snapshotErr   error
	// toSpotErr decides the outcome of each margin->spot transfer
	toSpotErr func(asset string, amount decimal.Decimal) error

	// duringRepay runs while a repay is in flight
	duringRepay func()

	orders []interfaces.MarketOrder
	nextID int64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		spot:   map[string]decimal.Decimal{},
		lot:    models.LotSize{MinQty: dec("0.00001"), MaxQty: dec("9000"), StepSize: dec("0.00001")},
		price:  dec("60000"),
		nextID: 1000,
	}
}

func (f *fakeExchange) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// matches compares whole words, so "to-spot BTC 0.00001" does not match "to-spot BTC 0.000015"
func matches(call, prefix string) bool {
	return call == prefix || strings.HasPrefix(call, prefix+" ")
}

func (f *fakeExchange) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if matches(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeExchange) index(prefix string) int {
	for i, c := range f.calls {
		if matches(c, prefix) {
			return i
		}
	}
	return -1
}

func (f *fakeExchange) SyncServerTime(ctx context.Context) (int64, error) {
	f.record("sync")
	return 12, nil
}

func (f *fakeExchange) SpotFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.record("spot %s", asset)
	return f.spot[asset], nil
}

func (f *fakeExchange) IsolatedMarginSnapshot(ctx context.Context, symbol string) (*models.MarginSnapshot, error) {
	f.record("snapshot")
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	if len(f.snapshots) == 0 {
		return nil, client.ErrNoMarginAccount
	}
	s := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	cp := *s
	return &cp, nil
}

func (f *fakeExchange) LotSize(ctx context.Context, symbol string) (models.LotSize, error) {
	f.record("lot")
	return f.lot, nil
}

func (f *fakeExchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.record("price")
	return f.price, nil
}

func (f *fakeExchange) EnableIsolatedAccount(ctx context.Context, symbol string) error {
	f.record("enable %s", symbol)
	return f.enableErr
}

func (f *fakeExchange) TransferSpotToMargin(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	f.record("to-margin %s %s", asset, amount)
	if f.transferInErr != nil {
		return 0, f.transferInErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeExchange) TransferMarginToSpot(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	f.record("to-spot %s %s", asset, amount)
	if f.toSpotErr != nil {
		if err := f.toSpotErr(asset, amount); err != nil {
			return 0, err
		}
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeExchange) RepayLoan(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	f.record("repay %s %s", asset, amount)
	if f.duringRepay != nil {
		f.duringRepay()
	}
	// An HTTP client abandons the request once ctx is done
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.repayErr != nil {
		return 0, f.repayErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeExchange) PlaceMarginMarketOrder(ctx context.Context, order interfaces.MarketOrder) (*interfaces.OrderResult, error) {
	f.record("order %s %s", order.Side, order.SideEffect)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, order)
	f.nextID++
	return &interfaces.OrderResult{OrderID: f.nextID, ExecutedQty: order.Quantity, Status: "FILLED"}, nil
}

func snapshot(baseFree, quoteFree, baseBorrowed, quoteBorrowed string) *models.MarginSnapshot {
	return &models.MarginSnapshot{
		Symbol:        "BTCUSDT",
		BaseAsset:     "BTC",
		QuoteAsset:    "USDT",
		BaseFree:      dec(baseFree),
		QuoteFree:     dec(quoteFree),
		BaseBorrowed:  dec(baseBorrowed),
		QuoteBorrowed: dec(quoteBorrowed),
	}
}

type memJournal struct {
	transfers []string
	repays    []string
	dust      []models.DustEntry
	cycles    []string
	runs      []models.RunSummary
}

func (m *memJournal) LogRun(s models.RunSummary) error {
	m.runs = append(m.runs, s)
	return nil
}

func (m *memJournal) LogTransfer(runID, symbol, asset, direction string, amount decimal.Decimal, tranID int64) error {
	m.transfers = append(m.transfers, fmt.Sprintf("%s %s %s %d", direction, asset, amount, tranID))
	return nil
}

func (m *memJournal) LogRepay(runID, symbol, asset string, amount decimal.Decimal, tranID int64) error {
	m.repays = append(m.repays, fmt.Sprintf("%s %s", asset, amount))
	return nil
}

func (m *memJournal) LogDust(runID, symbol string, entry models.DustEntry) error {
	m.dust = append(m.dust, entry)
	return nil
}

func (m *memJournal) LogCycle(runID, symbol string, cycle int, outcome string) error {
	m.cycles = append(m.cycles, outcome)
	return nil
}

type scriptedPrompter struct {
	answers []bool
	asked   int
}

func (p *scriptedPrompter) Confirm(string) (bool, error) {
	p.asked++
	if len(p.answers) == 0 {
		return false, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func testOptions() Options {
	return Options{
		Loops:            1,
		ManualWait:       3 * time.Second,
		SettleMin:        5 * time.Second,
		SettleMax:        10 * time.Second,
		TransferMode:     policy.TransferEveryCycle,
		CloseFailure:     policy.CloseFailureSkip,
		PositionMode:     policy.PositionManual,
		ConfirmBorrowed:  true,
		QuantityDecimals: 5,
	}
}

func newTestBot(ex *fakeExchange, pair models.TradingPair, opts Options, extra ...Option) (*MarginCycleBot, *memJournal) {
	var slept []time.Duration
	j := &memJournal{}
	options := append([]Option{WithJournal(j), WithWaiter(fakeClockWaiter(&slept))}, extra...)
	return NewMarginCycleBot(ex, pair, opts, options...), j
}
