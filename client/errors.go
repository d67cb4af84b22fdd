package client

import (
	"errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"
)

// ErrNoMarginAccount is returned when no isolated account exists for a symbol
var ErrNoMarginAccount = errors.New("no isolated margin account")

// Binance reports an existing isolated account with this code
const codeIsolatedAccountExists = -11001

// IsAlreadyEnabled reports whether err means the isolated account already exists
func IsAlreadyEnabled(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeIsolatedAccountExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already enabled")
}

// IsAmountTooSmall reports whether err is the exchange rejecting an amount as too small
func IsAmountTooSmall(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "too small")
}
