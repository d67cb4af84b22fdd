// Package config loads the runner settings from a YAML file, a .env file and
// the process environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"margin_bot/models"
	"margin_bot/policy"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultTransferAmount is used for any pair without an explicit amount
var DefaultTransferAmount = decimal.RequireFromString("0.0104")

// DefaultPairs is the menu offered when no pairs are configured
var DefaultPairs = []string{
	"BTCUSDT", "ETHBTC", "LTCBTC", "EURBTC", "XRPBTC",
	"ADABTC", "BNBBTC", "BCHBTC", "XLMBTC", "TRXBTC",
	"DOTBTC", "ETCBTC", "XMRBTC", "ZECBTC", "ZRXBTC",
}

// Exchange holds API credentials
type Exchange struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Workflow tunes the cycle driver
type Workflow struct {
	Loops            int           `yaml:"loops"`
	LoopDelay        time.Duration `yaml:"loop_delay"`
	ManualWait       time.Duration `yaml:"manual_wait"`
	Hold             time.Duration `yaml:"hold"`
	SettleMin        time.Duration `yaml:"settle_min"`
	SettleMax        time.Duration `yaml:"settle_max"`
	StepDelay        time.Duration `yaml:"step_delay"`
	TransferMode     string        `yaml:"transfer_mode"`
	CloseFailure     string        `yaml:"close_failure"`
	PositionMode     string        `yaml:"position_mode"`
	ConfirmBorrowed  bool          `yaml:"confirm_borrowed"`
	SyncServerTime   bool          `yaml:"sync_server_time"`
	QuantityDecimals int32         `yaml:"quantity_decimals"`
	OpenNotional     string        `yaml:"open_notional"`
	UseQuoteOrderQty bool          `yaml:"use_quote_order_qty"`
}

// Storage configures the local journal and summary outputs
type Storage struct {
	DBPath     string `yaml:"db_path"`
	SummaryCSV string `yaml:"summary_csv"`
}

// Config collects every configuration leaf
type Config struct {
	LogLevel        string            `yaml:"log_level"`
	MetricsAddr     string            `yaml:"metrics_addr"`
	Exchange        Exchange          `yaml:"exchange"`
	Pairs           []string          `yaml:"pairs"`
	TransferAmounts map[string]string `yaml:"transfer_amounts"`
	Workflow        Workflow          `yaml:"workflow"`
	Storage         Storage           `yaml:"storage"`
}

// Default returns the stock settings for an 80-loop run over the built-in pairs.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		Pairs:           append([]string(nil), DefaultPairs...),
		TransferAmounts: map[string]string{},
		Workflow: Workflow{
			Loops:            80,
			ManualWait:       25 * time.Second,
			SettleMin:        5 * time.Second,
			SettleMax:        10 * time.Second,
			StepDelay:        2 * time.Second,
			TransferMode:     policy.TransferEveryCycle.String(),
			CloseFailure:     policy.CloseFailureSkip.String(),
			PositionMode:     policy.PositionManual.String(),
			ConfirmBorrowed:  true,
			SyncServerTime:   true,
			QuantityDecimals: 5,
			OpenNotional:     "0",
		},
		Storage: Storage{
			DBPath:     "data/margin.db",
			SummaryCSV: "data/runs.csv",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, an optional .env
// file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	// A missing .env is normal in containers
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("TIME_REMAINING"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TIME_REMAINING: %w", err)
		}
		c.Workflow.ManualWait = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("LOOP_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOOP_COUNT: %w", err)
		}
		c.Workflow.Loops = n
	}
	if v := os.Getenv("LOOP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LOOP_DELAY: %w", err)
		}
		c.Workflow.LoopDelay = d
	}

	if c.TransferAmounts == nil {
		c.TransferAmounts = map[string]string{}
	}
	for _, pair := range c.Pairs {
		c.applyAmountEnv(pair)
	}
	return nil
}

func (c *Config) applyAmountEnv(symbol string) {
	symbol = strings.ToUpper(symbol)
	if v := os.Getenv("TRANSFER_AMOUNT_" + symbol); v != "" {
		if c.TransferAmounts == nil {
			c.TransferAmounts = map[string]string{}
		}
		c.TransferAmounts[symbol] = v
	}
}

// AddPair appends symbol unless already configured. Its TRANSFER_AMOUNT_
// override is read the same way as for the configured pairs.
func (c *Config) AddPair(symbol string) {
	for _, p := range c.Pairs {
		if strings.EqualFold(p, symbol) {
			return
		}
	}
	c.Pairs = append(c.Pairs, strings.ToUpper(symbol))
	c.applyAmountEnv(symbol)
}

// Validate rejects settings the runner cannot work with
func (c *Config) Validate() error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return errors.New("BINANCE_API_KEY or BINANCE_API_SECRET not set")
	}
	if len(c.Pairs) == 0 {
		return errors.New("no trading pairs configured")
	}
	if c.Workflow.Loops < 1 {
		return fmt.Errorf("loops must be at least 1, got %d", c.Workflow.Loops)
	}
	if c.Workflow.ManualWait < 0 || c.Workflow.Hold < 0 || c.Workflow.LoopDelay < 0 || c.Workflow.StepDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Workflow.SettleMin < 0 || c.Workflow.SettleMax < c.Workflow.SettleMin {
		return fmt.Errorf("invalid settle range %s..%s", c.Workflow.SettleMin, c.Workflow.SettleMax)
	}
	if _, err := policy.ParseTransferMode(c.Workflow.TransferMode); err != nil {
		return err
	}
	if _, err := policy.ParseCloseFailure(c.Workflow.CloseFailure); err != nil {
		return err
	}
	mode, err := policy.ParsePositionMode(c.Workflow.PositionMode)
	if err != nil {
		return err
	}
	notional, err := c.OpenNotional()
	if err != nil {
		return err
	}
	if mode == policy.PositionAuto && !notional.IsPositive() {
		return errors.New("auto position mode needs a positive open_notional")
	}
	for _, pair := range c.Pairs {
		amount, err := c.TransferAmount(pair)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return fmt.Errorf("transfer amount for %s must be positive", pair)
		}
	}
	return nil
}

// TransferAmount returns the configured amount for symbol, or the default
func (c *Config) TransferAmount(symbol string) (decimal.Decimal, error) {
	raw, ok := c.TransferAmounts[strings.ToUpper(symbol)]
	if !ok || raw == "" {
		return DefaultTransferAmount, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("transfer amount for %s: %w", symbol, err)
	}
	return amount, nil
}

// OpenNotional returns the quote amount spent when opening a position
func (c *Config) OpenNotional() (decimal.Decimal, error) {
	if c.Workflow.OpenNotional == "" {
		return decimal.Zero, nil
	}
	n, err := decimal.NewFromString(c.Workflow.OpenNotional)
	if err != nil {
		return decimal.Zero, fmt.Errorf("open_notional: %w", err)
	}
	return n, nil
}

// TradingPairs resolves every configured symbol into a models.TradingPair
func (c *Config) TradingPairs() ([]models.TradingPair, error) {
	pairs := make([]models.TradingPair, 0, len(c.Pairs))
	for _, symbol := range c.Pairs {
		amount, err := c.TransferAmount(symbol)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, models.NewTradingPair(symbol, amount))
	}
	return pairs, nil
}
