package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Page through the statement listing",
		Long: `List stored transactions ordered by provider-reported time (falling
back to ingestion time), newest first, using stable keyset pagination.`,
		RunE: runList,
	}

	cmd.Flags().String("cursor", "", "resume from a previous page's cursor")
	cmd.Flags().Int("page-size", 50, "rows per page")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	cursor, _ := cmd.Flags().GetString("cursor")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	page, err := store.ListStatement(ctx, cursor, pageSize)
	if err != nil {
		return err
	}

	for _, txn := range page.Transactions {
		fmt.Printf("%s  %-10s %8s %s  %-11s %s\n",
			txn.SortTimestamp().Format("2006-01-02 15:04"),
			txn.SourceChannel,
			txn.Amount,
			txn.Currency,
			txn.NormalizedStatus,
			txn.UID)
	}

	if page.NextCursor != "" {
		fmt.Printf("\nNext page: --cursor %s\n", page.NextCursor)
	}
	return nil
}
