package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"margin_bot/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	CyclesTotal.WithLabelValues("ETHBTC", "completed").Inc()
	DustTotal.WithLabelValues("ETHBTC", "ETH").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(CyclesTotal.WithLabelValues("ETHBTC", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(DustTotal.WithLabelValues("ETHBTC", "ETH")))
}

func TestReportRunWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.csv")
	now := time.Now()
	ReportRun(models.RunSummary{RunID: "r", Symbol: "BTCUSDT", Started: now, Finished: now}, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BTCUSDT")
}

type stubLedger struct {
	outcomes map[string]int
	dust     []models.DustEntry
	totals   map[string]decimal.Decimal
	err      error
}

func (l stubLedger) TransferredTotal(runID, asset, direction string) (decimal.Decimal, error) {
	return l.totals[direction], l.err
}

func (l stubLedger) DustEntries(runID string) ([]models.DustEntry, error) {
	return l.dust, l.err
}

func (l stubLedger) CycleOutcomes(runID string) (map[string]int, error) {
	return l.outcomes, l.err
}

func TestReconcileRun(t *testing.T) {
	summary := models.RunSummary{
		RunID:     "r",
		Symbol:    "BTCUSDT",
		Attempted: 3,
		Completed: 2,
		Skipped:   1,
		Dust:      []models.DustEntry{{Cycle: 1, Asset: "BTC", Amount: decimal.RequireFromString("0.0000001")}},
	}
	ledger := stubLedger{
		outcomes: map[string]int{models.OutcomeCompleted: 2, models.OutcomeSkipped: 1},
		dust:     summary.Dust,
		totals:   map[string]decimal.Decimal{models.DirectionSpotToMargin: decimal.RequireFromString("0.0208")},
	}
	require.NoError(t, ReconcileRun(summary, ledger, "USDT"))

	ledger.outcomes = map[string]int{models.OutcomeCompleted: 1, models.OutcomeSkipped: 1}
	ledger.dust = nil
	err := ReconcileRun(summary, ledger, "USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completed: journal 1, summary 2")
	assert.Contains(t, err.Error(), "dust: journal 0, summary 1")
}

func TestReconcileRunLedgerError(t *testing.T) {
	err := ReconcileRun(models.RunSummary{RunID: "r"}, stubLedger{err: errors.New("locked")}, "USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}
