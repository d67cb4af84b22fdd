package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"margin_bot/interfaces"
	"margin_bot/logger"
	"margin_bot/models"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// BinanceClient implements interfaces.MarginExchange on top of go-binance
type BinanceClient struct {
	client     *binance.Client
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewBinanceClient creates a new Binance client instance
func NewBinanceClient(apiKey, apiSecret string) (*BinanceClient, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("binance credentials are empty")
	}
	client := binance.NewClient(apiKey, apiSecret)
	logger.Info("Using Binance isolated margin API")
	return &BinanceClient{
		client:     client,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    client.BaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// Well under the 1200 weight/minute account limit
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}, nil
}

var _ interfaces.MarginExchange = (*BinanceClient)(nil)

func (b *BinanceClient) wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// SyncServerTime aligns request timestamps with the exchange clock and returns the offset in ms
func (b *BinanceClient) SyncServerTime(ctx context.Context) (int64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	offset, err := b.client.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sync server time: %w", err)
	}
	return offset, nil
}

// SpotFreeBalance returns the free spot balance of asset. A missing asset is a zero balance.
func (b *BinanceClient) SpotFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if err := b.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account info: %w", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset == asset {
			free, err := decimal.NewFromString(balance.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("failed to parse %s free balance %q: %w", asset, balance.Free, err)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// IsolatedMarginSnapshot reads free and borrowed amounts of both assets of symbol.
// It returns ErrNoMarginAccount when the exchange has no isolated account for it.
func (b *BinanceClient) IsolatedMarginSnapshot(ctx context.Context, symbol string) (*models.MarginSnapshot, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	account, err := b.client.NewGetIsolatedMarginAccountService().Symbols(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get isolated margin account for %s: %w", symbol, err)
	}
	if len(account.Assets) == 0 {
		return nil, ErrNoMarginAccount
	}

	asset := account.Assets[0]
	snapshot := &models.MarginSnapshot{
		Symbol:     symbol,
		BaseAsset:  asset.BaseAsset.Asset,
		QuoteAsset: asset.QuoteAsset.Asset,
		Timestamp:  time.Now(),
	}

	fields := []struct {
		dst *decimal.Decimal
		raw string
		tag string
	}{
		{&snapshot.BaseFree, asset.BaseAsset.Free, "base free"},
		{&snapshot.BaseBorrowed, asset.BaseAsset.Borrowed, "base borrowed"},
		{&snapshot.QuoteFree, asset.QuoteAsset.Free, "quote free"},
		{&snapshot.QuoteBorrowed, asset.QuoteAsset.Borrowed, "quote borrowed"},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s for %s: %w", f.tag, symbol, err)
		}
		*f.dst = v
	}

	return snapshot, nil
}

// LotSize fetches the LOT_SIZE filter for symbol
func (b *BinanceClient) LotSize(ctx context.Context, symbol string) (models.LotSize, error) {
	if err := b.wait(ctx); err != nil {
		return models.LotSize{}, err
	}
	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return models.LotSize{}, fmt.Errorf("failed to fetch exchange info for %s: %w", symbol, err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, filter := range s.Filters {
			if filter["filterType"] == "LOT_SIZE" {
				return parseLotSize(symbol, filter)
			}
		}
		return models.LotSize{}, fmt.Errorf("no LOT_SIZE filter for %s", symbol)
	}
	return models.LotSize{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func parseLotSize(symbol string, filter map[string]interface{}) (models.LotSize, error) {
	var lot models.LotSize
	fields := []struct {
		dst *decimal.Decimal
		key string
	}{
		{&lot.MinQty, "minQty"},
		{&lot.MaxQty, "maxQty"},
		{&lot.StepSize, "stepSize"},
	}
	for _, f := range fields {
		raw, ok := filter[f.key].(string)
		if !ok {
			return models.LotSize{}, fmt.Errorf("invalid %s format for %s", f.key, symbol)
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return models.LotSize{}, fmt.Errorf("failed to parse %s for %s: %w", f.key, symbol, err)
		}
		*f.dst = v
	}
	return lot, nil
}

// CurrentPrice fetches the last price for symbol, retrying briefly on failure
func (b *BinanceClient) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := retry(ctx, func() error {
		if err := b.wait(ctx); err != nil {
			return err
		}
		prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return fmt.Errorf("no price data returned for symbol %s", symbol)
		}
		price, err = decimal.NewFromString(prices[0].Price)
		return err
	}, 3, time.Second)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch current price for %s: %w", symbol, err)
	}

	logger.Debugf("Current price for %s: %s", symbol, price)
	return price, nil
}

// EnableIsolatedAccount creates the isolated margin account for symbol
func (b *BinanceClient) EnableIsolatedAccount(ctx context.Context, symbol string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	params := map[string]string{"symbol": symbol}
	if err := b.signedPost(ctx, "/sapi/v1/margin/isolated/account", params, nil); err != nil {
		return fmt.Errorf("failed to enable isolated margin account for %s: %w", symbol, err)
	}
	return nil
}

// TransferSpotToMargin moves amount of asset from spot into the isolated account of symbol
func (b *BinanceClient) TransferSpotToMargin(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	return b.isolatedTransfer(ctx, symbol, asset, amount, binance.AccountTypeSpot, binance.AccountTypeIsolatedMargin)
}

// TransferMarginToSpot moves amount of asset from the isolated account of symbol back to spot
func (b *BinanceClient) TransferMarginToSpot(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	return b.isolatedTransfer(ctx, symbol, asset, amount, binance.AccountTypeIsolatedMargin, binance.AccountTypeSpot)
}

func (b *BinanceClient) isolatedTransfer(ctx context.Context, symbol, asset string, amount decimal.Decimal, from, to binance.AccountType) (int64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	res, err := b.client.NewIsolatedMarginTransferService().
		Symbol(symbol).
		Asset(asset).
		TransFrom(from).
		TransTo(to).
		Amount(amount.String()).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer %s %s from %s to %s: %w", amount, asset, from, to, err)
	}
	return res.TranID, nil
}

// RepayLoan repays amount of a borrowed asset in the isolated account of symbol
func (b *BinanceClient) RepayLoan(ctx context.Context, symbol, asset string, amount decimal.Decimal) (int64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	res, err := b.client.NewMarginRepayService().
		Asset(asset).
		Amount(amount.String()).
		IsIsolated(true).
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to repay %s %s for %s: %w", amount, asset, symbol, err)
	}
	return res.TranID, nil
}

// PlaceMarginMarketOrder places an isolated margin market order
func (b *BinanceClient) PlaceMarginMarketOrder(ctx context.Context, order interfaces.MarketOrder) (*interfaces.OrderResult, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	svc := b.client.NewCreateMarginOrderService().
		Symbol(order.Symbol).
		Side(binance.SideType(order.Side)).
		Type(binance.OrderTypeMarket).
		IsIsolated(true).
		SideEffectType(binance.SideEffectType(order.SideEffect))
	if order.QuoteQuantity.IsPositive() {
		svc = svc.QuoteOrderQty(order.QuoteQuantity.String())
	} else {
		svc = svc.Quantity(order.Quantity.String())
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place MARKET %s margin order for %s: %w", order.Side, order.Symbol, err)
	}

	executed, _ := decimal.NewFromString(res.ExecutedQuantity)
	quote, _ := decimal.NewFromString(res.CummulativeQuoteQuantity)
	logger.Infof("Placed MARKET %s margin order for %s: OrderID=%d executed=%s", order.Side, order.Symbol, res.OrderID, executed)
	return &interfaces.OrderResult{
		OrderID:       res.OrderID,
		ExecutedQty:   executed,
		QuoteQuantity: quote,
		Status:        string(res.Status),
	}, nil
}

// Retry helper for API calls
func retry(ctx context.Context, fn func() error, retries int, delay time.Duration) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", retries, err)
}
