// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxarr/boxarr/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })

	return db
}

func testEncryptionKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newTestUserStore(t *testing.T, db *database.DB) *UserStore {
	t.Helper()

	store, err := NewUserStore(db, testEncryptionKey())
	require.NoError(t, err, "Failed to create user store")
	return store
}

func TestNewUserStoreRejectsBadKey(t *testing.T) {
	db := newTestDB(t)

	_, err := NewUserStore(db, []byte("too-short"))
	require.Error(t, err)

	_, err = NewUserStore(db, nil)
	require.Error(t, err)
}

func TestUserStoreCreateAndGet(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	store := newTestUserStore(t, db)

	user, err := store.Create(ctx, "alice", "torbox-key-abc")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.True(t, user.IsActive)

	// Key is stored encrypted, never verbatim.
	assert.NotEqual(t, "torbox-key-abc", user.APIKeyEncrypted)
	assert.NotContains(t, user.APIKeyEncrypted, "torbox-key-abc")

	loaded, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)

	apiKey, err := store.GetDecryptedAPIKey(loaded)
	require.NoError(t, err)
	assert.Equal(t, "torbox-key-abc", apiKey)
}

func TestUserStoreCreateValidation(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	store := newTestUserStore(t, db)

	_, err := store.Create(ctx, "", "key")
	require.Error(t, err)

	_, err = store.Create(ctx, "bob", "")
	require.Error(t, err)

	// Names are unique.
	_, err = store.Create(ctx, "carol", "key1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "carol", "key2")
	require.Error(t, err)
}

func TestUserStoreGetNotFound(t *testing.T) {
	db := newTestDB(t)
	store := newTestUserStore(t, db)

	_, err := store.Get(t.Context(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStoreUpdateAPIKey(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	store := newTestUserStore(t, db)

	user, err := store.Create(ctx, "alice", "old-key")
	require.NoError(t, err)

	require.NoError(t, store.UpdateAPIKey(ctx, user.ID, "new-key"))

	loaded, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	apiKey, err := store.GetDecryptedAPIKey(loaded)
	require.NoError(t, err)
	assert.Equal(t, "new-key", apiKey)

	assert.ErrorIs(t, store.UpdateAPIKey(ctx, 999, "key"), ErrUserNotFound)
}

func TestUserStoreSetActiveStateAndDelete(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	store := newTestUserStore(t, db)

	user, err := store.Create(ctx, "alice", "key")
	require.NoError(t, err)

	require.NoError(t, store.SetActiveState(ctx, user.ID, false))
	loaded, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)

	require.NoError(t, store.Delete(ctx, user.ID))
	_, err = store.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, store.Delete(ctx, user.ID), ErrUserNotFound)
}

func TestUsersWithEnabledRules(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	store := newTestUserStore(t, db)
	rules := NewRuleStore(db)

	withRule, err := store.Create(ctx, "with-rule", "key1")
	require.NoError(t, err)
	withDisabledRule, err := store.Create(ctx, "with-disabled-rule", "key2")
	require.NoError(t, err)
	inactive, err := store.Create(ctx, "inactive", "key3")
	require.NoError(t, err)
	_, err = store.Create(ctx, "no-rules", "key4")
	require.NoError(t, err)

	for i, setup := range []struct {
		userID  int64
		enabled bool
	}{
		{withRule.ID, true},
		{withDisabledRule.ID, false},
		{inactive.ID, true},
	} {
		_, err := rules.Create(ctx, &Rule{
			UserID:  setup.userID,
			Name:    "rule",
			Enabled: setup.enabled,
			Action:  Action{Kind: ActionDelete},
		})
		require.NoError(t, err, "rule %d", i)
	}

	require.NoError(t, store.SetActiveState(ctx, inactive.ID, false))

	ids, err := store.UsersWithEnabledRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{withRule.ID}, ids)
}
