// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torbox

import (
	"encoding/json"
	"time"
)

// TorrentOperation is a control operation on an active torrent.
type TorrentOperation string

const (
	TorrentOpStopSeeding TorrentOperation = "stop_seeding"
	TorrentOpDelete      TorrentOperation = "delete"
	TorrentOpArchive     TorrentOperation = "archive"
)

// QueuedOperation is a control operation on a queued download.
type QueuedOperation string

const (
	QueuedOpDelete     QueuedOperation = "delete"
	QueuedOpForceStart QueuedOperation = "force_start"
)

// Item is one entry in a user's library, either active (from mylist) or
// queued. Queued entries carry no DownloadState.
type Item struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Hash            string    `json:"hash"`
	DownloadState   string    `json:"download_state"`
	Progress        float64   `json:"progress"`
	DownloadSpeed   int64     `json:"download_speed"`
	UploadSpeed     int64     `json:"upload_speed"`
	Seeds           int       `json:"seeds"`
	Peers           int       `json:"peers"`
	Ratio           float64   `json:"ratio"`
	Tracker         string    `json:"tracker"`
	Size            int64     `json:"size"`
	Cached          bool      `json:"cached"`
	Private         bool      `json:"private"`
	LongTermSeeding bool      `json:"long_term_seeding"`
	Queued          bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Raw keeps the original payload for snapshot storage.
	Raw json.RawMessage `json:"-"`
}

type listResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Detail  string            `json:"detail"`
	Data    []json.RawMessage `json:"data"`
}

type controlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}
