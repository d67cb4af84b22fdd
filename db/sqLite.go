package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"margin_bot/interfaces"
	"margin_bot/logger"
	"margin_bot/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLite is the run journal
type SQLite struct {
	DB *sql.DB
}

var (
	_ interfaces.Journal   = (*SQLite)(nil)
	_ interfaces.RunLedger = (*SQLite)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        symbol TEXT NOT NULL,
        started DATETIME NOT NULL,
        finished DATETIME NOT NULL,
        attempted INTEGER NOT NULL,
        completed INTEGER NOT NULL,
        skipped INTEGER NOT NULL,
        failed INTEGER NOT NULL,
        aborted INTEGER NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS cycles (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        symbol TEXT NOT NULL,
        cycle INTEGER NOT NULL,
        outcome TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );`,
	`CREATE TABLE IF NOT EXISTS transfers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        symbol TEXT NOT NULL,
        asset TEXT NOT NULL,
        direction TEXT NOT NULL,
        amount TEXT NOT NULL,
        tran_id INTEGER NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );`,
	`CREATE TABLE IF NOT EXISTS repays (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        symbol TEXT NOT NULL,
        asset TEXT NOT NULL,
        amount TEXT NOT NULL,
        tran_id INTEGER NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );`,
	`CREATE TABLE IF NOT EXISTS dust (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        symbol TEXT NOT NULL,
        cycle INTEGER NOT NULL,
        asset TEXT NOT NULL,
        amount TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );`,
}

// InitDB opens the journal at dbPath and creates missing tables
func InitDB(dbPath string) (*SQLite, error) {
	logger.Infof("Initializing journal at %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	for _, query := range schema {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating journal tables: %w", err)
		}
	}

	logger.Debug("Journal initialized successfully.")
	return &SQLite{DB: db}, nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

// LogRun stores the summary of a finished run
func (s *SQLite) LogRun(summary models.RunSummary) error {
	_, err := s.DB.Exec(`
        INSERT INTO runs (id, symbol, started, finished, attempted, completed, skipped, failed, aborted)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, summary.RunID, summary.Symbol, summary.Started, summary.Finished,
		summary.Attempted, summary.Completed, summary.Skipped, summary.Failed, summary.Aborted)
	return err
}

// LogCycle stores the outcome of one loop iteration
func (s *SQLite) LogCycle(runID, symbol string, cycle int, outcome string) error {
	_, err := s.DB.Exec(`INSERT INTO cycles (run_id, symbol, cycle, outcome) VALUES (?, ?, ?, ?)`,
		runID, symbol, cycle, outcome)
	return err
}

// LogTransfer stores a spot<->margin transfer
func (s *SQLite) LogTransfer(runID, symbol, asset, direction string, amount decimal.Decimal, tranID int64) error {
	_, err := s.DB.Exec(`INSERT INTO transfers (run_id, symbol, asset, direction, amount, tran_id) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, symbol, asset, direction, amount.String(), tranID)
	return err
}

// LogRepay stores a loan repayment
func (s *SQLite) LogRepay(runID, symbol, asset string, amount decimal.Decimal, tranID int64) error {
	_, err := s.DB.Exec(`INSERT INTO repays (run_id, symbol, asset, amount, tran_id) VALUES (?, ?, ?, ?, ?)`,
		runID, symbol, asset, amount.String(), tranID)
	return err
}

// LogDust stores a residual balance left in the margin account
func (s *SQLite) LogDust(runID, symbol string, entry models.DustEntry) error {
	_, err := s.DB.Exec(`INSERT INTO dust (run_id, symbol, cycle, asset, amount) VALUES (?, ?, ?, ?, ?)`,
		runID, symbol, entry.Cycle, entry.Asset, entry.Amount.String())
	return err
}

// TransferredTotal sums the transfers of one run in one direction for an asset
func (s *SQLite) TransferredTotal(runID, asset, direction string) (decimal.Decimal, error) {
	rows, err := s.DB.Query(`SELECT amount FROM transfers WHERE run_id = ? AND asset = ? AND direction = ?`,
		runID, asset, direction)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q in journal: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// DustEntries returns the dust recorded for a run
func (s *SQLite) DustEntries(runID string) ([]models.DustEntry, error) {
	rows, err := s.DB.Query(`SELECT cycle, asset, amount FROM dust WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DustEntry
	for rows.Next() {
		var entry models.DustEntry
		var raw string
		if err := rows.Scan(&entry.Cycle, &entry.Asset, &raw); err != nil {
			return nil, err
		}
		if entry.Amount, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("corrupt amount %q in journal: %w", raw, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CycleOutcomes counts cycles per outcome for a run
func (s *SQLite) CycleOutcomes(runID string) (map[string]int, error) {
	rows, err := s.DB.Query(`SELECT outcome, COUNT(*) FROM cycles WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
