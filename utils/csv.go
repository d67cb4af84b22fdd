package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"margin_bot/models"
)

// AppendSummaryToCSV appends a run summary to a CSV file.
func AppendSummaryToCSV(filename string, summary models.RunSummary) error {
	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	writer := csv.NewWriter(file)

	if stat.Size() == 0 {
		header := []string{"RunID", "Symbol", "Started", "Finished", "Attempted", "Completed", "Skipped", "Failed", "Aborted", "DustEntries"}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	record := []string{
		summary.RunID,
		summary.Symbol,
		summary.Started.Format(time.RFC3339),
		summary.Finished.Format(time.RFC3339),
		strconv.Itoa(summary.Attempted),
		strconv.Itoa(summary.Completed),
		strconv.Itoa(summary.Skipped),
		strconv.Itoa(summary.Failed),
		strconv.FormatBool(summary.Aborted),
		strconv.Itoa(len(summary.Dust)),
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}

	writer.Flush()
	return writer.Error()
}
