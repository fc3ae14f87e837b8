package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/statement"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import statement files (CSV/XLSX) into the transaction ledger",
		Long: `Import uploaded bank or processor statements. Rows failing UID or
field validation are skipped and counted; duplicate UIDs merge into the
existing records.

Examples:
  papertrail import ~/Downloads/statement_jan.xlsx
  papertrail import ~/Downloads/*.csv --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	parser := statement.NewParser()
	ingestedAt := time.Now().UTC()

	var transactions []model.Transaction
	totalSkipped := 0

	for _, path := range allFiles {
		result, err := parser.ParseFile(path)
		if err != nil {
			slog.Error("Failed to parse statement file", "file", path, "error", err)
			continue
		}

		fileCount := 0
		for _, row := range result.Rows {
			txn, err := normalize.FromStatementRow(row, ingestedAt)
			if err != nil {
				result.Skipped++
				continue
			}
			transactions = append(transactions, txn)
			fileCount++
		}

		totalSkipped += result.Skipped
		slog.Info("Parsed statement file",
			"file", filepath.Base(path),
			"rows", fileCount,
			"skipped", result.Skipped)
	}

	if len(transactions) == 0 {
		slog.Warn("No valid rows found in any file")
		return nil
	}

	if dryRun {
		fmt.Printf("Dry run: %d rows would be imported, %d skipped\n", len(transactions), totalSkipped)
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	written, err := store.UpsertTransactions(ctx, transactions)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d rows into %d records (%d skipped)\n", len(transactions), written, totalSkipped)
	return nil
}
