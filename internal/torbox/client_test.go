// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/torrents/mylist", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("bypass_cache"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": [
				{"id": 1, "name": "ubuntu.iso", "download_state": "seeding", "progress": 1.0, "ratio": 2.5},
				{"id": 2, "name": "debian.iso", "download_state": "downloading", "progress": 0.4}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	items, err := client.MyList(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "ubuntu.iso", items[0].Name)
	assert.Equal(t, "seeding", items[0].DownloadState)
	assert.Equal(t, 2.5, items[0].Ratio)

	// Raw payload is preserved for snapshot storage.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(items[0].Raw, &raw))
	assert.Equal(t, "ubuntu.iso", raw["name"])
}

func TestClientQueuedList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/queued/list", r.URL.Path)
		assert.Equal(t, "torrent", r.URL.Query().Get("type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": [{"id": 7, "name": "pending", "download_state": "stalled"}]
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	items, err := client.QueuedList(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Queued entries are flagged and carry no download state regardless of
	// what the endpoint returned.
	assert.True(t, items[0].Queued)
	assert.Empty(t, items[0].DownloadState)
}

func TestClientControlTorrent(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/api/torrents/control", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	require.NoError(t, client.ControlTorrent(t.Context(), 42, TorrentOpStopSeeding))
	assert.Equal(t, float64(42), received["id"])
	assert.Equal(t, "stop_seeding", received["operation"])
}

func TestClientControlQueued(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/queued/control", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	require.NoError(t, client.ControlQueued(t.Context(), 9, QueuedOpForceStart))
	assert.Equal(t, "force_start", received["operation"])
	assert.Equal(t, "torrent", received["type"])
}

func TestClientAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "detail": "invalid token"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "bad-key"})

	_, err := client.MyList(t.Context())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "torrents/mylist", apiErr.Endpoint)
	assert.Contains(t, apiErr.Error(), "invalid token")
}

func TestClientEnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "DATABASE_ERROR"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	err := client.ControlTorrent(t.Context(), 1, TorrentOpDelete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_ERROR")
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://api.torbox.app/"})

	assert.Equal(t, "https://api.torbox.app", client.baseURL)
	assert.Equal(t, DefaultAPIVersion, client.apiVersion)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}
