// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package automation implements the background rule engine: it samples item
// state into snapshots, reconstructs continuous-time metrics from the snapshot
// history, evaluates user rules against live items, and dispatches control
// actions to the remote service.
package automation

import "github.com/boxarr/boxarr/internal/torbox"

// State is the internal classification of an item's remote status.
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StateSeeding     State = "seeding"
	StateStalled     State = "stalled"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateExpired     State = "expired"
)

// Terminal reports whether an item in this state does not naturally
// transition further. Terminal items are sampled once per transition only.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExpired:
		return true
	}
	return false
}

// stateTable maps the remote download_state strings onto internal states.
var stateTable = map[string]State{
	"queued":             StateQueued,
	"paused":             StateQueued,
	"metaDL":             StateDownloading,
	"checkingDL":         StateDownloading,
	"downloading":        StateDownloading,
	"uploading":          StateSeeding,
	"seeding":            StateSeeding,
	"stalled":            StateStalled,
	"stalledDL":          StateStalled,
	"stalled (no seeds)": StateStalled,
	"completed":          StateCompleted,
	"cached":             StateCompleted,
	"error":              StateFailed,
	"failed":             StateFailed,
	"missingFiles":       StateFailed,
	"expired":            StateExpired,
}

// Classify maps an item's raw remote status to an internal state. An item with
// no download state is queued. Unrecognized raw values pass through verbatim
// so new remote states never break classification.
func Classify(item torbox.Item) State {
	if item.DownloadState == "" {
		return StateQueued
	}
	if state, ok := stateTable[item.DownloadState]; ok {
		return state
	}
	return State(item.DownloadState)
}
