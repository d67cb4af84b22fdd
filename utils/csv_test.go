package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"margin_bot/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendSummaryToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "runs.csv")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	summary := models.RunSummary{
		RunID: "abc", Symbol: "BTCUSDT", Started: start, Finished: start.Add(time.Minute),
		Attempted: 80, Completed: 78, Skipped: 2,
		Dust: []models.DustEntry{{Cycle: 1, Asset: "BTC", Amount: decimal.RequireFromString("0.0000001")}},
	}
	require.NoError(t, AppendSummaryToCSV(path, summary))
	require.NoError(t, AppendSummaryToCSV(path, summary))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header written once")
	assert.Equal(t, "RunID", rows[0][0])
	assert.Equal(t, []string{"abc", "BTCUSDT", "2026-01-02T03:04:05Z", "2026-01-02T03:05:05Z", "80", "78", "2", "0", "false", "1"}, rows[1])
}
