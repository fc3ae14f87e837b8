// Package match resolves transactions to contacts through a
// deterministic priority chain, and propagates operator links to other
// unmatched transactions sharing a correlating attribute.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
	"github.com/nkrasko/paper-trail/internal/normalize"
	"github.com/nkrasko/paper-trail/internal/service"
)

// Matcher resolves transactions against manual links and the contact
// directory.
type Matcher struct {
	store service.Store
}

// New creates a matcher backed by the given store.
func New(store service.Store) *Matcher {
	return &Matcher{store: store}
}

// Match resolves one transaction. First match wins, in order: a manual
// link stored against this UID, a manual link recorded for the same
// normalized email, a manual link recorded for the same normalized
// card-holder name, an exact email match in the contact directory, an
// exact normalized full-name match in the contact directory. A found
// match is persisted as the transaction's annotation.
//
// Name-based steps are lower confidence than email-based ones: holder
// names collide across unrelated customers, so their results must not
// drive money-moving side effects.
func (m *Matcher) Match(ctx context.Context, txn model.Transaction) (model.MatchResult, error) {
	email := normalize.NormalizeEmail(txn.Customer.Email)
	holder := normalize.NormalizeName(txn.Card.Holder)
	fullName := normalize.NormalizeName(txn.Customer.Name)

	result, err := m.resolve(ctx, txn.UID, email, holder, fullName)
	if err != nil {
		return model.MatchResult{}, err
	}

	if result.MatchType != model.MatchNone {
		if err := m.store.SaveMatch(ctx, &result); err != nil {
			return model.MatchResult{}, fmt.Errorf("failed to persist match for %s: %w", txn.UID, err)
		}
	}

	return result, nil
}

func (m *Matcher) resolve(ctx context.Context, uid, email, holder, fullName string) (model.MatchResult, error) {
	if link, err := m.store.GetManualLinkByUID(ctx, uid); err == nil {
		return model.MatchResult{TransactionUID: uid, ContactID: link.ContactID, MatchType: model.MatchManual}, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return model.MatchResult{}, err
	}

	if email != "" {
		if link, err := m.store.GetManualLinkByEmail(ctx, email); err == nil {
			return model.MatchResult{TransactionUID: uid, ContactID: link.ContactID, MatchType: model.MatchEmail}, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return model.MatchResult{}, err
		}
	}

	if holder != "" {
		if link, err := m.store.GetManualLinkByCardHolder(ctx, holder); err == nil {
			return model.MatchResult{TransactionUID: uid, ContactID: link.ContactID, MatchType: model.MatchCardHolderName}, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return model.MatchResult{}, err
		}
	}

	if email != "" {
		if contact, err := m.store.GetContactByEmail(ctx, email); err == nil {
			return model.MatchResult{TransactionUID: uid, ContactID: contact.ID, MatchType: model.MatchEmail}, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return model.MatchResult{}, err
		}
	}

	if fullName != "" {
		if contact, err := m.store.GetContactByFullName(ctx, fullName); err == nil {
			return model.MatchResult{TransactionUID: uid, ContactID: contact.ID, MatchType: model.MatchCardHolderName}, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return model.MatchResult{}, err
		}
	}

	return model.MatchResult{TransactionUID: uid, MatchType: model.MatchNone}, nil
}

// LinkManually records an authoritative operator link for a UID, then
// scans currently-unmatched transactions sharing the transaction's
// email or card-holder name and links them too. Propagation extends
// coverage; it never reassigns a transaction that already has any
// non-none match. Returns the number of propagated links.
func (m *Matcher) LinkManually(ctx context.Context, uid, contactID string) (int, error) {
	txn, err := m.store.GetTransactionByUID(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to load transaction %s: %w", uid, err)
	}

	email := normalize.NormalizeEmail(txn.Customer.Email)
	holder := normalize.NormalizeName(txn.Card.Holder)

	link := &model.ManualLink{
		TransactionUID: uid,
		ContactID:      contactID,
		Email:          email,
		CardHolder:     holder,
	}
	if err := m.store.SaveManualLink(ctx, link); err != nil {
		return 0, err
	}
	if err := m.store.SaveMatch(ctx, &model.MatchResult{
		TransactionUID: uid,
		ContactID:      contactID,
		MatchType:      model.MatchManual,
	}); err != nil {
		return 0, err
	}

	targets, err := m.store.GetUnmatchedByAttributes(ctx, email, holder)
	if err != nil {
		return 0, fmt.Errorf("failed to find propagation targets: %w", err)
	}

	propagated := 0
	for _, target := range targets {
		if target.UID == uid {
			continue
		}

		matchType := model.MatchCardHolderName
		if email != "" && normalize.NormalizeEmail(target.Customer.Email) == email {
			matchType = model.MatchEmail
		}

		if err := m.store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: target.UID,
			ContactID:      contactID,
			MatchType:      matchType,
		}); err != nil {
			return propagated, fmt.Errorf("failed to propagate link to %s: %w", target.UID, err)
		}
		propagated++
	}

	if propagated > 0 {
		slog.Info("Propagated manual link",
			"uid", uid,
			"contact_id", contactID,
			"propagated", propagated)
	}

	return propagated, nil
}
