// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleStoreCreateAndGet(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	store := NewRuleStore(db)

	user, err := users.Create(ctx, "alice", "key")
	require.NoError(t, err)

	rule := &Rule{
		UserID:  user.ID,
		Name:    "stop long seeders",
		Enabled: true,
		Conditions: []Condition{
			{Kind: ConditionSeedingHours, Operator: OperatorGT, Threshold: 72},
			{Kind: ConditionRatio, Operator: OperatorGTE, Threshold: 2.0},
		},
		Combinator: CombinatorAnd,
		Action:     Action{Kind: ActionStopSeeding},
	}

	created, err := store.Create(ctx, rule)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	loaded, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "stop long seeders", loaded.Name)
	assert.True(t, loaded.Enabled)
	require.Len(t, loaded.Conditions, 2)
	assert.Equal(t, ConditionSeedingHours, loaded.Conditions[0].Kind)
	assert.Equal(t, OperatorGT, loaded.Conditions[0].Operator)
	assert.Equal(t, 72.0, loaded.Conditions[0].Threshold)
	assert.Equal(t, CombinatorAnd, loaded.Combinator)
	assert.Equal(t, ActionStopSeeding, loaded.Action.Kind)
}

func TestRuleStoreCreateValidation(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	store := NewRuleStore(db)

	user, err := users.Create(ctx, "alice", "key")
	require.NoError(t, err)

	_, err = store.Create(ctx, &Rule{UserID: user.ID, Action: Action{Kind: ActionDelete}})
	require.Error(t, err, "empty name rejected")

	_, err = store.Create(ctx, &Rule{
		UserID:     user.ID,
		Name:       "bad combinator",
		Combinator: "xor",
		Action:     Action{Kind: ActionDelete},
	})
	require.Error(t, err)

	// Empty combinator defaults to AND.
	created, err := store.Create(ctx, &Rule{
		UserID: user.ID,
		Name:   "defaulted",
		Action: Action{Kind: ActionDelete},
	})
	require.NoError(t, err)
	assert.Equal(t, CombinatorAnd, created.Combinator)
}

func TestRuleStoreGetNotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewRuleStore(db)

	_, err := store.Get(t.Context(), 12345)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleStoreListEnabledForUserOrder(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	store := NewRuleStore(db)

	alice, err := users.Create(ctx, "alice", "key1")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", "key2")
	require.NoError(t, err)

	first, err := store.Create(ctx, &Rule{UserID: alice.ID, Name: "first", Enabled: true, Action: Action{Kind: ActionDelete}})
	require.NoError(t, err)
	_, err = store.Create(ctx, &Rule{UserID: alice.ID, Name: "disabled", Enabled: false, Action: Action{Kind: ActionDelete}})
	require.NoError(t, err)
	second, err := store.Create(ctx, &Rule{UserID: alice.ID, Name: "second", Enabled: true, Action: Action{Kind: ActionArchive}})
	require.NoError(t, err)
	_, err = store.Create(ctx, &Rule{UserID: bob.ID, Name: "other user", Enabled: true, Action: Action{Kind: ActionDelete}})
	require.NoError(t, err)

	enabled, err := store.ListEnabledForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, first.ID, enabled[0].ID)
	assert.Equal(t, second.ID, enabled[1].ID)

	all, err := store.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRuleStoreUpdate(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	store := NewRuleStore(db)

	user, err := users.Create(ctx, "alice", "key")
	require.NoError(t, err)

	created, err := store.Create(ctx, &Rule{
		UserID:     user.ID,
		Name:       "original",
		Enabled:    true,
		Combinator: CombinatorAnd,
		Action:     Action{Kind: ActionDelete},
	})
	require.NoError(t, err)

	created.Name = "renamed"
	created.Enabled = false
	created.Combinator = CombinatorOr
	created.Conditions = []Condition{{Kind: ConditionCached}}
	created.Action = Action{Kind: ActionArchive}

	updated, err := store.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	loaded, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)
	assert.False(t, loaded.Enabled)
	assert.Equal(t, CombinatorOr, loaded.Combinator)
	require.Len(t, loaded.Conditions, 1)
	assert.Equal(t, ConditionCached, loaded.Conditions[0].Kind)
	assert.Equal(t, ActionArchive, loaded.Action.Kind)

	missing := *created
	missing.ID = 9999
	_, err = store.Update(ctx, &missing)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleStoreDelete(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	store := NewRuleStore(db)

	user, err := users.Create(ctx, "alice", "key")
	require.NoError(t, err)

	created, err := store.Create(ctx, &Rule{
		UserID: user.ID,
		Name:   "victim",
		Action: Action{Kind: ActionDelete},
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, store.Delete(ctx, created.ID), ErrRuleNotFound)
}
