package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"margin_bot/bot"
	"margin_bot/client"
	"margin_bot/config"
	"margin_bot/console"
	sqlite "margin_bot/db"
	"margin_bot/logger"
	"margin_bot/metrics"
	"margin_bot/models"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "margin-cycler",
		Usage: "Cycle funds through a Binance isolated margin account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Value: "info", Usage: "Log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "pair", Aliases: []string{"p"}, Usage: "Symbol to run, e.g. BTCUSDT; shows a menu when empty"},
			&cli.IntFlag{Name: "loops", Usage: "Override the number of cycles"},
			&cli.StringFlag{Name: "mode", Usage: "Position mode: manual or auto"},
			&cli.StringFlag{Name: "transfer-mode", Usage: "Transfer mode: every-cycle or once"},
			&cli.StringFlag{Name: "close-failure", Usage: "On close failure: skip or abort"},
			&cli.StringFlag{Name: "db", Usage: "Journal database path"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address"},
			&cli.BoolFlag{Name: "yes", Usage: "Do not ask before cleaning up when borrowed funds remain"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, console.ErrExit) {
			logger.Info("Script terminated by user")
			return
		}
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logLevel := c.String("log")
	logger.InitLogger(&logLevel)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level := resolveLogLevel(c.IsSet("log"), logLevel, cfg.LogLevel); level != logLevel {
		logger.InitLogger(&level)
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pairs, err := cfg.TradingPairs()
	if err != nil {
		return err
	}

	term := console.New(os.Stdin, os.Stdout)
	pair, err := choosePair(c.String("pair"), pairs, term)
	if err != nil {
		return err
	}

	opts, err := bot.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	journal, err := sqlite.InitDB(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	defer journal.Close()

	cl, err := client.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	if err != nil {
		return fmt.Errorf("failed to create Binance client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr)
	}

	botOpts := []bot.Option{
		bot.WithJournal(journal),
		bot.WithProgress(term.Progress),
	}
	if !c.Bool("yes") {
		botOpts = append(botOpts, bot.WithPrompter(term))
	}
	runner := bot.NewMarginCycleBot(cl, pair, opts, botOpts...)

	logger.Infof("[Selected] %s: %s %s from spot to isolated margin, %d cycles",
		pair.DisplayName(), pair.TransferAmount, pair.TransferAsset, opts.Loops)

	summary, runErr := runner.Run(ctx)
	metrics.ReportRun(summary, cfg.Storage.SummaryCSV)
	if err := metrics.ReconcileRun(summary, journal, pair.TransferAsset); err != nil {
		logger.Warnf("%v", err)
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("Interrupted, run stopped cleanly")
		return nil
	}
	return runErr
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("loops") {
		cfg.Workflow.Loops = c.Int("loops")
	}
	if c.IsSet("mode") {
		cfg.Workflow.PositionMode = c.String("mode")
	}
	if c.IsSet("transfer-mode") {
		cfg.Workflow.TransferMode = c.String("transfer-mode")
	}
	if c.IsSet("close-failure") {
		cfg.Workflow.CloseFailure = c.String("close-failure")
	}
	if c.IsSet("db") {
		cfg.Storage.DBPath = c.String("db")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if symbol := c.String("pair"); symbol != "" {
		cfg.AddPair(symbol)
	}
}

// resolveLogLevel prefers an explicit --log, then the config file, then the flag default
func resolveLogLevel(flagSet bool, flagValue, configured string) string {
	if flagSet || configured == "" {
		return flagValue
	}
	return configured
}

func choosePair(symbol string, pairs []models.TradingPair, term *console.Console) (models.TradingPair, error) {
	if symbol == "" {
		return term.SelectPair(pairs)
	}
	for _, p := range pairs {
		if strings.EqualFold(p.Symbol, symbol) {
			return p, nil
		}
	}
	return models.TradingPair{}, fmt.Errorf("pair %s is not configured", symbol)
}
