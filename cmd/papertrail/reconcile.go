package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/reconcile"
	"github.com/nkrasko/paper-trail/internal/statement"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <statement-file>",
		Short: "Diff an external statement against the internal ledger",
		Long: `Compute the three-way diff between an authoritative statement and
the ledger for the same window: matched, missing-in-ledger,
extra-in-ledger, plus field-level status and amount mismatches.
Reconcile never mutates state; use recover/resync/cancel to act on the
findings.`,
		Args: cobra.ExactArgs(1),
		RunE: runReconcile,
	}

	cmd.Flags().String("from", "", "window start (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "window end (YYYY-MM-DD)")

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	ctx := cmd.Context()

	window, err := dateRangeFromFlags(from, to)
	if err != nil {
		return err
	}

	result, err := statement.NewParser().ParseFile(args[0])
	if err != nil {
		return err
	}

	entries := make([]model.StatementEntry, 0, len(result.Rows))
	skipped := result.Skipped
	for _, row := range result.Rows {
		if row.OccurredAt != nil && !window.Contains(*row.OccurredAt) {
			continue
		}
		entry, err := normalize.StatementEntry(row)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	ledger, err := store.GetTransactionsByDateRange(ctx, window)
	if err != nil {
		return err
	}

	report := reconcile.Diff(entries, ledger)
	printReport(report, skipped)
	return nil
}

func printReport(report model.ReconciliationReport, skippedRows int) {
	fmt.Printf("Matched:            %d\n", report.Matched)
	fmt.Printf("Missing in ledger:  %d\n", report.MissingInLedger)
	fmt.Printf("Extra in ledger:    %d\n", report.ExtraInLedger)
	fmt.Printf("Status mismatches:  %d\n", len(report.StatusMismatches))
	fmt.Printf("Amount mismatches:  %d\n", len(report.AmountMismatches))
	if skippedRows > 0 {
		fmt.Printf("Skipped rows:       %d\n", skippedRows)
	}

	if len(report.MissingSamples) > 0 {
		fmt.Println("\nMissing in ledger (samples):")
		for _, sample := range report.MissingSamples {
			fmt.Printf("  %s  %s %s  %s\n", sample.UID, sample.Amount, sample.Currency, sample.NormalizedStatus)
		}
	}
	if len(report.ExtraSamples) > 0 {
		fmt.Println("\nExtra in ledger (samples):")
		for _, sample := range report.ExtraSamples {
			fmt.Printf("  %s  %s %s  %s\n", sample.UID, sample.Amount, sample.Currency, sample.NormalizedStatus)
		}
	}

	fmt.Println("\nNet revenue check (per status: count / sum):")
	for _, status := range []model.NormalizedStatus{
		model.StatusSuccessful, model.StatusPending, model.StatusFailed,
		model.StatusRefunded, model.StatusCancelled,
	} {
		stmt := report.StatementTotals[status]
		ledger := report.LedgerTotals[status]
		if stmt.Count == 0 && ledger.Count == 0 {
			continue
		}
		fmt.Printf("  %-11s statement %d / %s   ledger %d / %s\n",
			status, stmt.Count, stmt.Sum, ledger.Count, ledger.Sum)
	}
}
