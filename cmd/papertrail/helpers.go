package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nkrasko/paper-trail/internal/provider"
	"github.com/nkrasko/paper-trail/internal/recovery"
	"github.com/nkrasko/paper-trail/internal/service"
	"github.com/nkrasko/paper-trail/internal/storage"
)

// openStore opens the configured database and applies pending
// migrations.
func openStore() (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(viper.GetString("database.path"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// newRecoveryService wires the recovery engine from configuration.
func newRecoveryService(store *storage.SQLiteStorage) (*recovery.Service, error) {
	client, err := provider.NewHTTPClient(
		viper.GetString("provider.base_url"),
		viper.GetString("provider.shop_id"),
		viper.GetString("provider.secret_key"),
	)
	if err != nil {
		return nil, err
	}

	return recovery.New(store, client, recovery.Config{
		BatchSize:     viper.GetInt("recovery.batch_size"),
		MaxCandidates: viper.GetInt("recovery.max_candidates"),
		MaxAttempts:   viper.GetInt("recovery.max_attempts"),
	}), nil
}

// dateRangeFromFlags parses --from / --to values into a window. Empty
// values leave the bound open.
func dateRangeFromFlags(from, to string) (service.DateRange, error) {
	var window service.DateRange

	if from != "" {
		start, err := parseDate(from)
		if err != nil {
			return window, fmt.Errorf("invalid --from: %w", err)
		}
		window.Start = start
	}
	if to != "" {
		end, err := parseDate(to)
		if err != nil {
			return window, fmt.Errorf("invalid --to: %w", err)
		}
		// Inclusive end of day for date-only input
		window.End = end.Add(24*time.Hour - time.Nanosecond)
	}

	return window, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD)", s)
}
