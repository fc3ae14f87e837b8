package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/recovery"
)

func resyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-fetch incomplete records from the provider",
		Long: `Preview, then optionally execute, a bulk resync of already-known
records still missing their provider-reported timestamp. Resync only
enriches records the ledger already holds; the provider has no bulk
listing API, so it never discovers new transactions.`,
		RunE: runResync,
	}

	cmd.Flags().String("from", "", "ingestion window start (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "ingestion window end (YYYY-MM-DD)")
	cmd.Flags().Bool("apply", false, "Execute immediately after preview")
	cmd.Flags().String("plan", "", "Execute a previously previewed plan by id")
	cmd.Flags().Bool("confirm", false, "Confirm execution of a stopped plan")

	return cmd
}

func runResync(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	apply, _ := cmd.Flags().GetBool("apply")
	planID, _ := cmd.Flags().GetString("plan")
	confirm, _ := cmd.Flags().GetBool("confirm")
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	svc, err := newRecoveryService(store)
	if err != nil {
		return err
	}

	if planID == "" {
		window, err := dateRangeFromFlags(from, to)
		if err != nil {
			return err
		}

		plan, err := svc.PreviewBulkResync(ctx, window)
		if err != nil {
			return err
		}

		fmt.Printf("Plan %s: %d candidates\n", plan.ID, len(plan.CandidateUIDs))
		if plan.State == model.StateStopped {
			fmt.Printf("STOPPED: %s\n", plan.StopReason)
			fmt.Printf("Run again with --plan %s --confirm to execute anyway.\n", plan.ID)
			return nil
		}
		if !apply {
			fmt.Printf("Run again with --plan %s to execute.\n", plan.ID)
			return nil
		}
		planID = plan.ID
	}

	attachProgressBar(svc, "Resyncing")

	result, err := svc.ExecuteBulkResync(ctx, planID, confirm)
	if err != nil {
		return err
	}

	fmt.Printf("\nExecuted plan %s: %d applied, %d failed\n", result.PlanID, result.Applied, len(result.Failures))
	for _, failure := range result.Failures {
		fmt.Printf("  %s: %s\n", failure.UID, failure.Reason)
	}
	return nil
}

// attachProgressBar wires a terminal progress bar into a bulk
// execution.
func attachProgressBar(svc *recovery.Service, description string) {
	var bar *progressbar.ProgressBar
	svc.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), description)
		}
		_ = bar.Set(done)
	}
}
