package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/model"
)

func cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Soft-cancel stale queued records",
		Long: `Preview, then optionally execute, the soft-cancellation of queued
records matching the given statuses within a window. Records are never
deleted: cancellation is a status transition that preserves the audit
trail. Any candidate whose UID is corroborated by a ledger payment is
excluded and reported as a conflict.`,
		RunE: runCancel,
	}

	cmd.Flags().String("from", "", "window start (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "window end (YYYY-MM-DD)")
	cmd.Flags().StringSlice("status", []string{"pending"}, "normalized statuses to cancel")
	cmd.Flags().Bool("apply", false, "Execute immediately after preview")
	cmd.Flags().String("plan", "", "Execute a previously previewed plan by id")
	cmd.Flags().Bool("confirm", false, "Confirm execution of a stopped plan")

	return cmd
}

func runCancel(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	statusNames, _ := cmd.Flags().GetStringSlice("status")
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

		statuses := make([]model.NormalizedStatus, 0, len(statusNames))
		for _, name := range statusNames {
			statuses = append(statuses, model.NormalizedStatus(name))
		}

		plan, err := svc.PreviewSoftCancel(ctx, window, statuses)
		if err != nil {
			return err
		}

		fmt.Printf("Plan %s: %d candidates, %d ledger conflicts excluded\n",
			plan.ID, len(plan.CandidateUIDs), len(plan.ConflictUIDs))
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

	result, err := svc.ExecuteSoftCancel(ctx, planID, confirm)
	if err != nil {
		return err
	}

	fmt.Printf("Executed plan %s: %d cancelled, %d conflicts skipped\n",
		result.PlanID, result.Applied, len(result.Conflicts))
	for _, failure := range result.Failures {
		fmt.Printf("  skipped %s: %s\n", failure.UID, failure.Reason)
	}
	return nil
}
