package main

import (
	"bytes"
	"strings"
	"testing"

	"margin_bot/console"
	"margin_bot/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoosePairByFlag(t *testing.T) {
	pairs := []models.TradingPair{
		models.NewTradingPair("BTCUSDT", decimal.RequireFromString("0.0104")),
		models.NewTradingPair("ETHBTC", decimal.RequireFromString("0.0104")),
	}
	term := console.New(strings.NewReader(""), &bytes.Buffer{})

	p, err := choosePair("ethbtc", pairs, term)
	require.NoError(t, err)
	assert.Equal(t, "ETHBTC", p.Symbol)

	_, err = choosePair("DOGEUSDT", pairs, term)
	assert.Error(t, err)

	p, err = choosePair("", pairs, console.New(strings.NewReader("1\n"), &bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", p.Symbol)
}

func TestResolveLogLevel(t *testing.T) {
	assert.Equal(t, "debug", resolveLogLevel(false, "info", "debug"))
	assert.Equal(t, "warn", resolveLogLevel(true, "warn", "debug"))
	assert.Equal(t, "info", resolveLogLevel(false, "info", ""))
}
