package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/match"
)

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <uid> <contact-id>",
		Short: "Manually link a transaction to a contact",
		Long: `Record an authoritative manual link between a transaction and a
contact, then propagate it to currently-unmatched transactions sharing
the same email or card-holder name. Propagation never reassigns a
transaction that already has a match.`,
		Args: cobra.ExactArgs(2),
		RunE: runLink,
	}
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	propagated, err := match.New(store).LinkManually(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Linked %s to contact %s (%d transactions linked by propagation)\n",
		args[0], args[1], propagated)
	return nil
}
