package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/diagnose"
	"github.com/nkrasko/paper-trail/internal/model"
)

func diagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Scan paid orders for missing or duplicated payment records",
		Long: `Scan every order in the paid terminal state and report anomalies:
a payment UID attributed to two orders (most severe), a paid order with
no payment record, or an order with no provider UID at all. Each order
receives at most one diagnosis.`,
		RunE: runDiagnose,
	}
}

func runDiagnose(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	records, err := diagnose.New(store).Run(ctx)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No anomalies found.")
		return nil
	}

	counts := map[model.Diagnosis]int{}
	for _, record := range records {
		counts[record.Diagnosis]++
		fmt.Printf("%-26s order %s: %s\n", record.Diagnosis, record.OrderID, record.Detail)
	}

	fmt.Printf("\n%d anomalies: %d duplicate-order, %d missing-payment, %d no-provider-uid\n",
		len(records),
		counts[model.DiagnosisDuplicateOrder],
		counts[model.DiagnosisMissingPayment],
		counts[model.DiagnosisNoProviderUID])
	return nil
}
