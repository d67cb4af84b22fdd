package policy

import (
	"fmt"
	"strings"
)

// quoteAssets are tried in order; the first suffix match wins.
var quoteAssets = []string{"USDT", "BTC", "ETH", "BNB", "EUR", "BUSD", "USDC"}

// transferAssetOverrides pins the asset moved into margin for pairs where the
// quote asset is not the right collateral on the exchange.
var transferAssetOverrides = map[string]string{
	"BNBBTC": "BNB",
}

// SplitSymbol splits a symbol such as ETHBTC into its base and quote assets.
// A bare quote asset such as USDT yields an empty base.
func SplitSymbol(symbol string) (base, quote string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) {
			return strings.TrimSuffix(symbol, q), q
		}
	}

	// Unknown quote, fall back to a fixed-length split
	if len(symbol) > 3 {
		return symbol[:len(symbol)-3], symbol[len(symbol)-3:]
	}
	if len(symbol) < 2 {
		return "", symbol
	}
	return symbol[:len(symbol)-2], symbol[len(symbol)-2:]
}

// DisplayName renders a symbol as BASE/QUOTE
func DisplayName(symbol string) string {
	base, quote := SplitSymbol(symbol)
	return fmt.Sprintf("%s/%s", base, quote)
}

// TransferAsset returns the asset that funds the isolated margin account for symbol.
func TransferAsset(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if asset, ok := transferAssetOverrides[symbol]; ok {
		return asset
	}

	_, quote := SplitSymbol(symbol)
	switch quote {
	case "BTC":
		return "BTC"
	case "USDT":
		return "USDT"
	default:
		return quote
	}
}
