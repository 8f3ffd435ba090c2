// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torbox

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxarr/boxarr/internal/database"
	"github.com/boxarr/boxarr/internal/models"
)

func TestFactoryClientFor(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	users, err := models.NewUserStore(db, key)
	require.NoError(t, err)

	user, err := users.Create(t.Context(), "alice", "alice-api-key")
	require.NoError(t, err)

	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success": true, "data": []}`))
	}))
	defer server.Close()

	factory := NewFactory(FactoryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, users)

	client, err := factory.ClientFor(t.Context(), user.ID)
	require.NoError(t, err)

	// The decrypted per-user key ends up as the bearer credential.
	_, err = client.MyList(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Bearer alice-api-key", auth)
}

func TestFactoryClientForUnknownUser(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	key := make([]byte, 32)
	users, err := models.NewUserStore(db, key)
	require.NoError(t, err)

	factory := NewFactory(FactoryConfig{BaseURL: "http://localhost"}, users)

	_, err = factory.ClientFor(t.Context(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
