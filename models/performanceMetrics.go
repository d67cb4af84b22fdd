package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cycle outcomes as journaled and counted
const (
	OutcomeCompleted     = "completed"
	OutcomeSkipped       = "skipped"
	OutcomeCleanupFailed = "cleanup-failed"
	OutcomeAborted       = "aborted"
)

// Transfer directions between spot and the isolated account
const (
	DirectionSpotToMargin = "SPOT_TO_MARGIN"
	DirectionMarginToSpot = "MARGIN_TO_SPOT"
)

// DustEntry is a residual balance left behind in a margin account
type DustEntry struct {
	Cycle  int
	Asset  string
	Amount decimal.Decimal
}

// CleanupResult describes one repay and withdraw pass
type CleanupResult struct {
	Removed bool
	Dust    []DustEntry
}

// RunSummary aggregates the outcome of a full run
type RunSummary struct {
	RunID     string
	Symbol    string
	Started   time.Time
	Finished  time.Time
	Attempted int
	Completed int
	Skipped   int
	Failed    int
	Aborted   bool
	Dust      []DustEntry
}
