package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"margin_bot/interfaces"
	"margin_bot/logger"
	"margin_bot/models"
	"margin_bot/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "margin_cycles_total", Help: "Workflow cycles by outcome"},
		[]string{"symbol", "outcome"},
	)
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "margin_transfers_total", Help: "Spot and isolated margin transfers"},
		[]string{"symbol", "asset", "direction"},
	)
	RepaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "margin_repays_total", Help: "Isolated margin loan repayments"},
		[]string{"symbol", "asset"},
	)
	DustTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "margin_dust_total", Help: "Residual balances left below the minimum lot"},
		[]string{"symbol", "asset"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, TransfersTotal, RepaysTotal, DustTotal)
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Serving metrics on %s/metrics", addr)
	return srv
}

// ReportRun logs the run summary and appends it to the CSV history
func ReportRun(summary models.RunSummary, csvPath string) {
	logger.Infof("Run summary for %s (run %s):", summary.Symbol, summary.RunID)
	logger.Infof("Cycles attempted: %d, completed: %d, skipped: %d, failed: %d, aborted: %t",
		summary.Attempted, summary.Completed, summary.Skipped, summary.Failed, summary.Aborted)
	for _, d := range summary.Dust {
		logger.Infof("Dust left in cycle %d: %s %s", d.Cycle, d.Amount, d.Asset)
	}
	logger.Infof("Duration: %s", summary.Finished.Sub(summary.Started).Round(time.Second))

	if csvPath == "" {
		return
	}
	if err := utils.AppendSummaryToCSV(csvPath, summary); err != nil {
		logger.Errorf("Failed to append run summary to CSV: %v", err)
	}
}

// ReconcileRun compares the in-memory summary with what the journal recorded
// for the same run and logs the journaled transfer totals. It returns an error
// naming every count that disagrees.
func ReconcileRun(summary models.RunSummary, ledger interfaces.RunLedger, transferAsset string) error {
	log := logger.With(summary.Symbol)

	outcomes, err := ledger.CycleOutcomes(summary.RunID)
	if err != nil {
		return fmt.Errorf("read journaled cycles: %w", err)
	}
	dust, err := ledger.DustEntries(summary.RunID)
	if err != nil {
		return fmt.Errorf("read journaled dust: %w", err)
	}
	in, err := ledger.TransferredTotal(summary.RunID, transferAsset, models.DirectionSpotToMargin)
	if err != nil {
		return fmt.Errorf("read journaled transfers: %w", err)
	}
	out, err := ledger.TransferredTotal(summary.RunID, transferAsset, models.DirectionMarginToSpot)
	if err != nil {
		return fmt.Errorf("read journaled transfers: %w", err)
	}
	log.Info().
		Str("run_id", summary.RunID).
		Str("asset", transferAsset).
		Str("to_margin", in.String()).
		Str("to_spot", out.String()).
		Msg("Journaled transfers")

	var mismatches []string
	check := func(what string, journaled, counted int) {
		if journaled != counted {
			mismatches = append(mismatches, fmt.Sprintf("%s: journal %d, summary %d", what, journaled, counted))
		}
	}
	check(models.OutcomeCompleted, outcomes[models.OutcomeCompleted], summary.Completed)
	check(models.OutcomeSkipped, outcomes[models.OutcomeSkipped], summary.Skipped)
	check(models.OutcomeCleanupFailed, outcomes[models.OutcomeCleanupFailed], summary.Failed)
	check("dust", len(dust), len(summary.Dust))

	if len(mismatches) > 0 {
		log.Warn().Str("run_id", summary.RunID).Strs("mismatches", mismatches).Msg("Journal disagrees with run summary")
		return fmt.Errorf("journal disagrees with run summary: %s", strings.Join(mismatches, "; "))
	}
	return nil
}
