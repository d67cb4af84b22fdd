package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"margin_bot/client"
	"margin_bot/config"
	"margin_bot/interfaces"
	"margin_bot/logger"
	"margin_bot/metrics"
	"margin_bot/models"
	"margin_bot/policy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalance is a local precondition failure: no remote call was made
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBelowMinQty is returned when a quantity is under the symbol's minimum lot
	ErrBelowMinQty = errors.New("quantity below minimum lot size")
	// ErrRunAborted stops the whole run under the abort close-failure policy
	ErrRunAborted = errors.New("run aborted")
)

// Progress stages passed to the progress callback
const (
	StageManualClose = "manual-close"
	StageHold        = "hold"
	StageSettle      = "settle"
	StageLoopDelay   = "loop-delay"
)

// Options are the workflow settings, resolved from config
type Options struct {
	Loops            int
	LoopDelay        time.Duration
	ManualWait       time.Duration
	Hold             time.Duration
	SettleMin        time.Duration
	SettleMax        time.Duration
	StepDelay        time.Duration
	TransferMode     policy.TransferMode
	CloseFailure     policy.CloseFailure
	PositionMode     policy.PositionMode
	ConfirmBorrowed  bool
	SyncServerTime   bool
	QuantityDecimals int32
	OpenNotional     decimal.Decimal
	UseQuoteOrderQty bool
}

// OptionsFromConfig converts validated config into workflow options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	w := cfg.Workflow
	transferMode, err := policy.ParseTransferMode(w.TransferMode)
	if err != nil {
		return Options{}, err
	}
	closeFailure, err := policy.ParseCloseFailure(w.CloseFailure)
	if err != nil {
		return Options{}, err
	}
	positionMode, err := policy.ParsePositionMode(w.PositionMode)
	if err != nil {
		return Options{}, err
	}
	notional, err := cfg.OpenNotional()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Loops:            w.Loops,
		LoopDelay:        w.LoopDelay,
		ManualWait:       w.ManualWait,
		Hold:             w.Hold,
		SettleMin:        w.SettleMin,
		SettleMax:        w.SettleMax,
		StepDelay:        w.StepDelay,
		TransferMode:     transferMode,
		CloseFailure:     closeFailure,
		PositionMode:     positionMode,
		ConfirmBorrowed:  w.ConfirmBorrowed,
		SyncServerTime:   w.SyncServerTime,
		QuantityDecimals: w.QuantityDecimals,
		OpenNotional:     notional,
		UseQuoteOrderQty: w.UseQuoteOrderQty,
	}, nil
}

// MarginCycleBot runs the transfer, wait, close and cleanup cycle for one pair
type MarginCycleBot struct {
	exchange interfaces.MarginExchange
	pair     models.TradingPair
	opts     Options
	journal  interfaces.Journal
	prompter interfaces.Prompter
	waiter   *Waiter
	progress func(stage string, remaining time.Duration)
	runID    string
	cycle    int
}

// Option customises a MarginCycleBot
type Option func(*MarginCycleBot)

func WithJournal(j interfaces.Journal) Option {
	return func(b *MarginCycleBot) { b.journal = j }
}

// WithPrompter sets who answers the borrowed-funds question. Without one the
// cleanup proceeds unattended.
func WithPrompter(p interfaces.Prompter) Option {
	return func(b *MarginCycleBot) { b.prompter = p }
}

func WithWaiter(w *Waiter) Option {
	return func(b *MarginCycleBot) { b.waiter = w }
}

// WithProgress attaches a display callback to every wait
func WithProgress(fn func(stage string, remaining time.Duration)) Option {
	return func(b *MarginCycleBot) { b.progress = fn }
}

func NewMarginCycleBot(exchange interfaces.MarginExchange, pair models.TradingPair, opts Options, options ...Option) *MarginCycleBot {
	b := &MarginCycleBot{
		exchange: exchange,
		pair:     pair,
		opts:     opts,
		journal:  nopJournal{},
		waiter:   NewWaiter(),
		runID:    uuid.NewString(),
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// RunID identifies this run in the journal
func (b *MarginCycleBot) RunID() string {
	return b.runID
}

func (b *MarginCycleBot) tick(stage string) TickFunc {
	if b.progress == nil {
		return nil
	}
	return func(remaining time.Duration) { b.progress(stage, remaining) }
}

func (b *MarginCycleBot) name() string {
	return b.pair.DisplayName()
}

// remote strips cancellation from exchange calls. A started call always
// completes; interrupts are only observed by waits and between steps.
func remote(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// EnsureIsolatedAccount enables the isolated account; an existing account is success
func (b *MarginCycleBot) EnsureIsolatedAccount(ctx context.Context) error {
	logger.Infof("[Setup] Enabling isolated margin account for %s...", b.name())
	err := b.exchange.EnableIsolatedAccount(remote(ctx), b.pair.Symbol)
	switch {
	case err == nil:
		logger.Infof("[Setup] Isolated margin account enabled for %s.", b.name())
		return b.waiter.Pause(ctx, b.opts.StepDelay)
	case client.IsAlreadyEnabled(err):
		logger.Infof("[Setup] Isolated margin account for %s already exists.", b.name())
		return nil
	default:
		logger.Errorf("[Setup] Error enabling isolated account for %s: %v", b.name(), err)
		return err
	}
}

// TransferToMargin moves the configured amount from spot into the isolated account.
// It never calls the transfer endpoint when the spot balance cannot cover the amount.
func (b *MarginCycleBot) TransferToMargin(ctx context.Context) (int64, error) {
	asset, amount := b.pair.TransferAsset, b.pair.TransferAmount
	logger.Infof("[Step 1] Transferring %s %s to isolated margin for %s...", amount, asset, b.name())

	free, err := b.exchange.SpotFreeBalance(remote(ctx), asset)
	if err != nil {
		return 0, fmt.Errorf("read spot %s balance: %w", asset, err)
	}
	logger.Infof("[Info] Spot %s balance: %s", asset, free)

	if free.LessThan(amount) {
		return 0, fmt.Errorf("%w: spot %s %s < %s", ErrInsufficientBalance, asset, free, amount)
	}

	tranID, err := b.exchange.TransferSpotToMargin(remote(ctx), b.pair.Symbol, asset, amount)
	if err != nil {
		return 0, err
	}

	logger.Infof("[Step 1] Transfer successful. Transaction ID: %d", tranID)
	metrics.TransfersTotal.WithLabelValues(b.pair.Symbol, asset, models.DirectionSpotToMargin).Inc()
	if err := b.journal.LogTransfer(b.runID, b.pair.Symbol, asset, models.DirectionSpotToMargin, amount, tranID); err != nil {
		logger.Warnf("Failed to journal transfer %d: %v", tranID, err)
	}
	return tranID, nil
}

// CheckMarginAccount fetches and logs a fresh snapshot of the isolated account
func (b *MarginCycleBot) CheckMarginAccount(ctx context.Context) (*models.MarginSnapshot, error) {
	snap, err := b.exchange.IsolatedMarginSnapshot(remote(ctx), b.pair.Symbol)
	if err != nil {
		return nil, err
	}
	logger.Infof("[Status] Margin account for %s:", b.name())
	logger.Infof("   %s - Free: %s, Borrowed: %s", snap.BaseAsset, snap.BaseFree, snap.BaseBorrowed)
	logger.Infof("   %s - Free: %s, Borrowed: %s", snap.QuoteAsset, snap.QuoteFree, snap.QuoteBorrowed)
	return snap, nil
}

// OpenPosition buys the base asset with the configured quote notional, borrowing as needed
func (b *MarginCycleBot) OpenPosition(ctx context.Context) (*models.ActiveTrade, error) {
	notional := b.opts.OpenNotional
	if !notional.IsPositive() {
		return nil, fmt.Errorf("open notional must be positive, got %s", notional)
	}

	lot, err := b.exchange.LotSize(remote(ctx), b.pair.Symbol)
	if err != nil {
		return nil, err
	}
	price, err := b.exchange.CurrentPrice(remote(ctx), b.pair.Symbol)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("invalid price %s for %s", price, b.pair.Symbol)
	}

	qty := lot.Adjust(notional.Div(price), b.opts.QuantityDecimals)
	if qty.IsZero() || lot.IsDust(qty) {
		return nil, fmt.Errorf("%w: buy %s %s < %s", ErrBelowMinQty, qty, b.pair.BaseAsset, lot.MinQty)
	}

	order := interfaces.MarketOrder{
		Symbol:     b.pair.Symbol,
		Side:       interfaces.SideBuy,
		SideEffect: interfaces.SideEffectAutoBorrow,
	}
	if b.opts.UseQuoteOrderQty {
		order.QuoteQuantity = notional
		logger.Infof("[Open] Buying %s %s of %s with auto-borrow", notional, b.pair.QuoteAsset, b.pair.BaseAsset)
	} else {
		order.Quantity = qty
		logger.Infof("[Open] Buying %s %s at ~%s with auto-borrow", qty, b.pair.BaseAsset, price)
	}

	res, err := b.exchange.PlaceMarginMarketOrder(remote(ctx), order)
	if err != nil {
		return nil, err
	}
	return &models.ActiveTrade{
		OrderID:    res.OrderID,
		Symbol:     b.pair.Symbol,
		Side:       string(interfaces.SideBuy),
		Quantity:   res.ExecutedQty,
		QuoteSpent: res.QuoteQuantity,
	}, nil
}

// ClosePosition sells the free base balance with auto-repay. The order size is
// truncated, so it never exceeds the free balance read just before.
func (b *MarginCycleBot) ClosePosition(ctx context.Context) (*interfaces.OrderResult, error) {
	snap, err := b.exchange.IsolatedMarginSnapshot(remote(ctx), b.pair.Symbol)
	if err != nil {
		return nil, err
	}
	lot, err := b.exchange.LotSize(remote(ctx), b.pair.Symbol)
	if err != nil {
		return nil, err
	}

	qty := lot.Adjust(snap.BaseFree, b.opts.QuantityDecimals)
	if qty.IsZero() || lot.IsDust(qty) {
		return nil, fmt.Errorf("%w: sell %s %s (free %s) < %s", ErrBelowMinQty, qty, b.pair.BaseAsset, snap.BaseFree, lot.MinQty)
	}

	logger.Infof("[Close] Selling %s %s with auto-repay", qty, b.pair.BaseAsset)
	return b.exchange.PlaceMarginMarketOrder(remote(ctx), interfaces.MarketOrder{
		Symbol:     b.pair.Symbol,
		Side:       interfaces.SideSell,
		Quantity:   qty,
		SideEffect: interfaces.SideEffectAutoRepay,
	})
}

// Cleanup repays outstanding loans (quote first), then moves free balances back
// to spot. Dust is recorded, never fatal.
func (b *MarginCycleBot) Cleanup(ctx context.Context) (models.CleanupResult, error) {
	var result models.CleanupResult
	logger.Infof("[Step 5] Removing margin assets for %s...", b.name())

	snap, err := b.CheckMarginAccount(ctx)
	if errors.Is(err, client.ErrNoMarginAccount) {
		logger.Infof("[Step 5] No margin account found for %s", b.name())
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("read margin account: %w", err)
	}

	repaid := false
	loans := []struct {
		asset  string
		amount decimal.Decimal
	}{
		{snap.QuoteAsset, snap.QuoteBorrowed},
		{snap.BaseAsset, snap.BaseBorrowed},
	}
	for _, loan := range loans {
		if !loan.amount.IsPositive() {
			continue
		}
		if err := b.repay(ctx, loan.asset, loan.amount); err != nil {
			return result, err
		}
		result.Removed = true
		repaid = true
	}

	if repaid {
		snap, err = b.CheckMarginAccount(ctx)
		if err != nil {
			return result, fmt.Errorf("refresh margin account after repay: %w", err)
		}
	}

	if snap.BaseFree.IsPositive() {
		removed, dust := b.withdrawBase(ctx, snap.BaseAsset, snap.BaseFree)
		result.Removed = result.Removed || removed
		if dust != nil {
			result.Dust = append(result.Dust, *dust)
		}
	}

	if snap.QuoteFree.IsPositive() {
		removed, dust := b.withdrawQuote(ctx, snap.QuoteAsset, snap.QuoteFree)
		result.Removed = result.Removed || removed
		if dust != nil {
			result.Dust = append(result.Dust, *dust)
		}
	}

	for _, d := range result.Dust {
		metrics.DustTotal.WithLabelValues(b.pair.Symbol, d.Asset).Inc()
		if err := b.journal.LogDust(b.runID, b.pair.Symbol, d); err != nil {
			logger.Warnf("Failed to journal dust: %v", err)
		}
	}

	if result.Removed {
		logger.Infof("[Step 5] Assets removed for %s", b.name())
	} else {
		logger.Infof("[Info] No assets to remove or all left as dust for %s", b.name())
	}
	return result, nil
}

func (b *MarginCycleBot) repay(ctx context.Context, asset string, amount decimal.Decimal) error {
	logger.Infof("[Action] Repaying borrowed %s: %s", asset, amount)
	tranID, err := b.exchange.RepayLoan(remote(ctx), b.pair.Symbol, asset, amount)
	if err != nil {
		return fmt.Errorf("repay %s %s: %w", amount, asset, err)
	}
	logger.Infof("[Action] Borrowed %s repaid: %s", asset, amount)

	metrics.RepaysTotal.WithLabelValues(b.pair.Symbol, asset).Inc()
	if err := b.journal.LogRepay(b.runID, b.pair.Symbol, asset, amount, tranID); err != nil {
		logger.Warnf("Failed to journal repay %d: %v", tranID, err)
	}
	return b.waiter.Pause(ctx, b.opts.StepDelay)
}

// withdrawBase moves the full base balance to spot, retrying once with the
// minimum lot when the exchange rejects the amount as too small.
func (b *MarginCycleBot) withdrawBase(ctx context.Context, asset string, free decimal.Decimal) (bool, *models.DustEntry) {
	lot, err := b.exchange.LotSize(remote(ctx), b.pair.Symbol)
	if err != nil {
		logger.Warnf("[Warning] Error removing %s: %v", asset, err)
		return false, nil
	}
	logger.Debugf("[Debug] %s - Free: %s, MinQty: %s, StepSize: %s", asset, free, lot.MinQty, lot.StepSize)

	logger.Infof("[Action] Removing MAX %s: %s", asset, free)
	err = b.toSpot(ctx, asset, free)
	if err == nil {
		return true, nil
	}
	if !client.IsAmountTooSmall(err) {
		logger.Warnf("[Warning] Error removing %s: %v", asset, err)
		return false, nil
	}

	if lot.IsDust(free) {
		logger.Infof("[Info] %s amount %s is dust, leaving in margin account", asset, free)
		return false, &models.DustEntry{Cycle: b.cycle, Asset: asset, Amount: free}
	}

	logger.Warnf("[Warning] Amount too small, trying with minimum quantity %s...", lot.MinQty)
	if err := b.toSpot(ctx, asset, lot.MinQty); err != nil {
		logger.Warnf("[Warning] Error removing %s with minimum quantity: %v", asset, err)
		return false, nil
	}
	return true, nil
}

func (b *MarginCycleBot) withdrawQuote(ctx context.Context, asset string, free decimal.Decimal) (bool, *models.DustEntry) {
	logger.Infof("[Action] Removing %s: %s", asset, free)
	err := b.toSpot(ctx, asset, free)
	switch {
	case err == nil:
		return true, nil
	case client.IsAmountTooSmall(err):
		logger.Infof("[Info] %s amount %s is dust, leaving in margin account", asset, free)
		return false, &models.DustEntry{Cycle: b.cycle, Asset: asset, Amount: free}
	default:
		logger.Warnf("[Warning] Error removing %s: %v", asset, err)
		return false, nil
	}
}

func (b *MarginCycleBot) toSpot(ctx context.Context, asset string, amount decimal.Decimal) error {
	tranID, err := b.exchange.TransferMarginToSpot(remote(ctx), b.pair.Symbol, asset, amount)
	if err != nil {
		return err
	}
	logger.Infof("[Action] %s %s removed. Transaction ID: %d", amount, asset, tranID)

	metrics.TransfersTotal.WithLabelValues(b.pair.Symbol, asset, models.DirectionMarginToSpot).Inc()
	if err := b.journal.LogTransfer(b.runID, b.pair.Symbol, asset, models.DirectionMarginToSpot, amount, tranID); err != nil {
		logger.Warnf("Failed to journal transfer %d: %v", tranID, err)
	}
	return nil
}

// Run executes up to opts.Loops cycles. It returns early with the context error
// when interrupted, or with ErrRunAborted under the abort close-failure policy.
func (b *MarginCycleBot) Run(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{
		RunID:   b.runID,
		Symbol:  b.pair.Symbol,
		Started: time.Now(),
	}
	logger.Infof("[Start] %s: %d loops, transfer %s %s (%s), position mode %s",
		b.name(), b.opts.Loops, b.pair.TransferAmount, b.pair.TransferAsset, b.opts.TransferMode, b.opts.PositionMode)

	funded := false
	var runErr error

loop:
	for i := 1; i <= b.opts.Loops; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		b.cycle = i
		summary.Attempted++
		logger.Infof("[Loop %d/%d] Processing %s", i, b.opts.Loops, b.name())

		outcome, dust, err := b.runCycle(ctx, &funded)
		summary.Dust = append(summary.Dust, dust...)
		b.recordCycle(i, outcome)

		switch outcome {
		case models.OutcomeCompleted:
			summary.Completed++
		case models.OutcomeCleanupFailed:
			summary.Failed++
		case models.OutcomeAborted:
			summary.Aborted = true
			runErr = err
			break loop
		default:
			summary.Skipped++
		}
		if err != nil && outcome != models.OutcomeAborted {
			// Interrupted mid-cycle
			runErr = err
			break
		}

		if i < b.opts.Loops && b.opts.LoopDelay > 0 {
			if err := b.waiter.Countdown(ctx, b.opts.LoopDelay, b.tick(StageLoopDelay)); err != nil {
				runErr = err
				break
			}
		}
	}

	summary.Finished = time.Now()
	if err := b.journal.LogRun(summary); err != nil {
		logger.Warnf("Failed to journal run %s: %v", b.runID, err)
	}

	if runErr != nil {
		logger.Warnf("[Stop] Run for %s ended early after %d loops: %v", b.name(), summary.Attempted, runErr)
		return summary, runErr
	}
	logger.Infof("[Mission Complete] All %d loops finished for %s!", b.opts.Loops, b.name())
	return summary, nil
}

func (b *MarginCycleBot) recordCycle(cycle int, outcome string) {
	metrics.CyclesTotal.WithLabelValues(b.pair.Symbol, outcome).Inc()
	if err := b.journal.LogCycle(b.runID, b.pair.Symbol, cycle, outcome); err != nil {
		logger.Warnf("Failed to journal cycle %d: %v", cycle, err)
	}
}

// runCycle performs one iteration. A non-nil error is only returned for an
// interrupt or an abort; every other failure is folded into the outcome.
func (b *MarginCycleBot) runCycle(ctx context.Context, funded *bool) (string, []models.DustEntry, error) {
	if b.opts.SyncServerTime {
		if offset, err := b.exchange.SyncServerTime(remote(ctx)); err != nil {
			logger.Warnf("[Sync] Server time sync failed: %v", err)
		} else {
			logger.Infof("[Sync] Server time difference: %dms", offset)
		}
	}

	if err := b.EnsureIsolatedAccount(ctx); err != nil && ctx.Err() != nil {
		return models.OutcomeSkipped, nil, ctx.Err()
	}

	if b.opts.TransferMode == policy.TransferEveryCycle || !*funded {
		if _, err := b.TransferToMargin(ctx); err != nil {
			logger.Errorf("[Error] Transfer failed for %s, skipping loop %d: %v", b.name(), b.cycle, err)
			return models.OutcomeSkipped, nil, ctx.Err()
		}
		*funded = true
	}

	if b.opts.PositionMode == policy.PositionAuto {
		trade, err := b.OpenPosition(ctx)
		if err != nil {
			logger.Errorf("[Error] Open position failed for %s, skipping loop %d: %v", b.name(), b.cycle, err)
			return models.OutcomeSkipped, nil, ctx.Err()
		}
		logger.Infof("[Open] Order %d filled %s %s", trade.OrderID, trade.Quantity, b.pair.BaseAsset)

		if err := b.waiter.Countdown(ctx, b.opts.Hold, b.tick(StageHold)); err != nil {
			return models.OutcomeSkipped, nil, err
		}

		if _, err := b.ClosePosition(ctx); err != nil {
			if ctx.Err() != nil {
				return models.OutcomeSkipped, nil, ctx.Err()
			}
			if b.opts.CloseFailure == policy.CloseFailureAbort {
				logger.Errorf("[Error] Close position failed for %s, aborting run: %v", b.name(), err)
				return models.OutcomeAborted, nil, fmt.Errorf("%w: close position in loop %d: %v", ErrRunAborted, b.cycle, err)
			}
			logger.Errorf("[Error] Close position failed for %s, skipping loop %d: %v", b.name(), b.cycle, err)
			return models.OutcomeSkipped, nil, nil
		}
	} else {
		logger.Infof("[Step 2] Waiting %s for manual position close...", b.opts.ManualWait)
		logger.Info("[Info] Please manually close the position in the Binance app.")
		if err := b.waiter.Countdown(ctx, b.opts.ManualWait, b.tick(StageManualClose)); err != nil {
			return models.OutcomeSkipped, nil, err
		}
	}

	snap, err := b.CheckMarginAccount(ctx)
	if err != nil {
		logger.Errorf("[Error] Check margin account failed for %s: %v", b.name(), err)
	}
	if snap != nil && snap.HasLoan() && b.opts.ConfirmBorrowed && b.prompter != nil {
		logger.Warn("[Warning] Borrowed funds remain!")
		ok, err := b.prompter.Confirm("Continue with remove margin? (y/n): ")
		if err != nil {
			logger.Errorf("[Error] Reading confirmation: %v", err)
		}
		if err != nil || !ok {
			logger.Infof("[Info] Skipping remove margin in loop %d", b.cycle)
			return models.OutcomeSkipped, nil, ctx.Err()
		}
	}

	wait, err := b.waiter.SettlePause(ctx, b.opts.SettleMin, b.opts.SettleMax, b.tick(StageSettle))
	if err != nil {
		return models.OutcomeSkipped, nil, err
	}
	logger.Debugf("[Step 4] Waited %s before final remove", wait)

	result, err := b.Cleanup(ctx)
	if err != nil {
		logger.Errorf("[Error] Remove margin failed for %s: %v", b.name(), err)
		return models.OutcomeCleanupFailed, result.Dust, ctx.Err()
	}
	logger.Info("[Success] Remove margin completed")

	if final, err := b.CheckMarginAccount(ctx); err == nil {
		logger.Infof("[Loop %d Complete] Final %s: %s, final %s: %s", b.cycle, final.BaseAsset, final.BaseFree, final.QuoteAsset, final.QuoteFree)
	}
	return models.OutcomeCompleted, result.Dust, nil
}

type nopJournal struct{}

func (nopJournal) LogRun(models.RunSummary) error { return nil }
func (nopJournal) LogTransfer(string, string, string, string, decimal.Decimal, int64) error {
	return nil
}
func (nopJournal) LogRepay(string, string, string, decimal.Decimal, int64) error { return nil }
func (nopJournal) LogDust(string, string, models.DustEntry) error                { return nil }
func (nopJournal) LogCycle(string, string, int, string) error                    { return nil }
