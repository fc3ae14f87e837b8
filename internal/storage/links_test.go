package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrasko/paper-trail/internal/common"
	"github.com/nkrasko/paper-trail/internal/model"
)

func TestManualLinks(t *testing.T) {
	ctx := context.Background()

	t.Run("save and look up by uid, email and card holder", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		link := &model.ManualLink{
			TransactionUID: "uid-1",
			ContactID:      "contact-7",
			Email:          "jane@example.com",
			CardHolder:     "jane doe",
		}
		require.NoError(t, store.SaveManualLink(ctx, link))

		byUID, err := store.GetManualLinkByUID(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", byUID.ContactID)

		byEmail, err := store.GetManualLinkByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", byEmail.ContactID)

		byHolder, err := store.GetManualLinkByCardHolder(ctx, "jane doe")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", byHolder.ContactID)
	})

	t.Run("relinking a uid replaces the previous decision", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.NoError(t, store.SaveManualLink(ctx, &model.ManualLink{
			TransactionUID: "uid-1", ContactID: "contact-7",
		}))
		require.NoError(t, store.SaveManualLink(ctx, &model.ManualLink{
			TransactionUID: "uid-1", ContactID: "contact-9",
		}))

		link, err := store.GetManualLinkByUID(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "contact-9", link.ContactID)
	})

	t.Run("not found", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.GetManualLinkByUID(ctx, "unknown")
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("rejects a link without a contact", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		err := store.SaveManualLink(ctx, &model.ManualLink{TransactionUID: "uid-1"})
		require.ErrorIs(t, err, ErrInvalidLink)
	})
}

func TestMatches(t *testing.T) {
	ctx := context.Background()

	t.Run("save and reload", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: "uid-1",
			ContactID:      "contact-7",
			MatchType:      model.MatchEmail,
		}))

		match, err := store.GetMatch(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", match.ContactID)
		assert.Equal(t, model.MatchEmail, match.MatchType)
	})

	t.Run("saving again replaces the annotation", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: "uid-1", ContactID: "contact-7", MatchType: model.MatchCardHolderName,
		}))
		require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: "uid-1", ContactID: "contact-7", MatchType: model.MatchManual,
		}))

		match, err := store.GetMatch(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, model.MatchManual, match.MatchType)
	})

	t.Run("none matches need no contact", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: "uid-1", MatchType: model.MatchNone,
		}))
	})

	t.Run("rejects unknown match types", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		err := store.SaveMatch(ctx, &model.MatchResult{
			TransactionUID: "uid-1", ContactID: "contact-7", MatchType: "psychic",
		})
		require.ErrorIs(t, err, ErrInvalidMatch)
	})
}

func TestGetUnmatchedByAttributes(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	unmatched := makeTestTransaction("uid-unmatched")
	unmatched.Customer.Email = "Jane@Example.com"
	require.NoError(t, store.UpsertTransaction(ctx, unmatched))

	noneMatched := makeTestTransaction("uid-none")
	noneMatched.Card.Holder = "Jane Doe"
	require.NoError(t, store.UpsertTransaction(ctx, noneMatched))
	require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
		TransactionUID: "uid-none", MatchType: model.MatchNone,
	}))

	// Same holder, different case and internal spacing.
	spacedHolder := makeTestTransaction("uid-spaced")
	spacedHolder.Card.Holder = "JANE  DOE"
	require.NoError(t, store.UpsertTransaction(ctx, spacedHolder))

	alreadyMatched := makeTestTransaction("uid-matched")
	alreadyMatched.Customer.Email = "jane@example.com"
	require.NoError(t, store.UpsertTransaction(ctx, alreadyMatched))
	require.NoError(t, store.SaveMatch(ctx, &model.MatchResult{
		TransactionUID: "uid-matched", ContactID: "contact-1", MatchType: model.MatchEmail,
	}))

	t.Run("returns unmatched and none-matched, never already-matched", func(t *testing.T) {
		got, err := store.GetUnmatchedByAttributes(ctx, "jane@example.com", "jane doe")
		require.NoError(t, err)

		uids := make([]string, 0, len(got))
		for _, txn := range got {
			uids = append(uids, txn.UID)
		}
		assert.ElementsMatch(t, []string{"uid-unmatched", "uid-none", "uid-spaced"}, uids)
	})

	t.Run("empty attributes yield nothing", func(t *testing.T) {
		got, err := store.GetUnmatchedByAttributes(ctx, "", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.InsertContact(ctx, model.Contact{
		ID:       "contact-7",
		Email:    "jane@example.com",
		FullName: "Jane Doe",
	}))

	t.Run("lookup by email is case insensitive", func(t *testing.T) {
		contact, err := store.GetContactByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", contact.ID)
	})

	t.Run("lookup by normalized full name", func(t *testing.T) {
		contact, err := store.GetContactByFullName(ctx, "jane doe")
		require.NoError(t, err)
		assert.Equal(t, "contact-7", contact.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetContactByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}
