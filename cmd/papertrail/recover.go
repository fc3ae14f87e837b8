package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/model"
)

func recoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover [uid|tracking-id]",
		Short: "Recover a single lost transaction from the provider",
		Long: `Preview, then optionally execute, the recovery of one transaction
by provider UID or merchant tracking id. The preview fetches the record
and reports created, already_exists or not_found; only a created
preview can be executed.

Examples:
  papertrail recover 3b51c6a2-...            # preview only
  papertrail recover 3b51c6a2-... --apply    # preview and execute
  papertrail recover --plan 7f0d...          # execute a stored preview`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRecover,
	}

	cmd.Flags().Bool("apply", false, "Execute immediately after a created preview")
	cmd.Flags().String("plan", "", "Execute a previously previewed plan by id")

	return cmd
}

func runRecover(cmd *cobra.Command, args []string) error {
	apply, _ := cmd.Flags().GetBool("apply")
	planID, _ := cmd.Flags().GetString("plan")
	ctx := cmd.Context()

	if planID == "" && len(args) == 0 {
		return fmt.Errorf("provide a UID/tracking id to preview, or --plan to execute")
	}

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
		plan, err := svc.PreviewRecovery(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Plan %s: %s\n", plan.ID, plan.Outcome)
		if plan.Candidate != nil {
			fmt.Printf("  %s  %s %s  %s\n",
				plan.Candidate.UID, plan.Candidate.Amount, plan.Candidate.Currency, plan.Candidate.NormalizedStatus)
		}

		if plan.Outcome != model.OutcomeCreated {
			return nil
		}
		if !apply {
			fmt.Printf("Run again with --plan %s to execute.\n", plan.ID)
			return nil
		}
		planID = plan.ID
	}

	result, err := svc.ExecuteRecovery(ctx, planID)
	if err != nil {
		return err
	}

	fmt.Printf("Executed plan %s: %d applied, %d conflicts\n", result.PlanID, result.Applied, len(result.Conflicts))
	for _, failure := range result.Failures {
		fmt.Printf("  skipped %s: %s\n", failure.UID, failure.Reason)
	}
	return nil
}
