package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("Database is at schema version %d\n", storage.ExpectedSchemaVersion)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the papertrail version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("papertrail %s\n", version)
		},
	}
}
