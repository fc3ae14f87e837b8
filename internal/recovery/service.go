// Package recovery implements the guarded, idempotent mutations driven
// by reconciliation and diagnostics output. Every operation follows the
// same two-phase pattern: preview computes a plan without mutating
// anything, execute applies a previously previewed plan. Plans whose
// candidate set exceeds the safety threshold stop and require explicit
// operator confirmation.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/provider"
	"github.com/nkrasko/paper-trail/internal/service"
)

// Config bounds the blast radius of bulk operations.
type Config struct {
	// BatchSize is the chunk size for bulk store and provider work.
	BatchSize int
	// MaxCandidates is the safety threshold: a preview whose candidate
	// set exceeds it returns a stopped plan instead of an executable one.
	MaxCandidates int
	// MaxAttempts caps provider fetch retries per record.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 1000
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Service executes recovery operations against the store and the
// provider API.
type Service struct {
	store    service.Store
	provider provider.Client
	cfg      Config

	// Progress, when set, is called after each processed record during
	// bulk executions.
	Progress func(done, total int)
}

// New creates a recovery service.
func New(store service.Store, providerClient provider.Client, cfg Config) *Service {
	return &Service{
		store:    store,
		provider: providerClient,
		cfg:      cfg.withDefaults(),
	}
}

// loadExecutablePlan fetches a plan and verifies it may be executed:
// right kind, still previewed (or stopped with explicit confirmation).
func (s *Service) loadExecutablePlan(ctx context.Context, planID string, kind model.RecoveryKind, confirmed bool) (*model.RecoveryPlan, error) {
	plan, err := s.store.GetRecoveryPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Kind != kind {
		return nil, fmt.Errorf("%w: plan %s is a %s plan", common.ErrPlanNotPreviewed, planID, plan.Kind)
	}

	switch plan.State {
	case model.StatePreviewed:
		return plan, nil
	case model.StateStopped:
		if !confirmed {
			return nil, fmt.Errorf("%w: %s", common.ErrPlanStopped, plan.StopReason)
		}
		return plan, nil
	default:
		return nil, fmt.Errorf("%w: plan %s is already %s", common.ErrPlanNotPreviewed, planID, plan.State)
	}
}

func (s *Service) reportProgress(done, total int) {
	if s.Progress != nil {
		s.Progress(done, total)
	}
}

// isNotFound reports whether an error is the provider's (or store's)
// not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
