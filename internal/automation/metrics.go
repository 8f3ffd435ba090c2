// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package automation

import (
	"time"

	"github.com/boxarr/boxarr/internal/models"
)

// stuckProgressGap is the minimum gap between two consecutive samples with
// identical progress before the item counts as stuck rather than briefly
// unchanged.
const stuckProgressGap = 2 * time.Hour

// DerivedMetrics are continuous-time statistics reconstructed from an item's
// snapshot history. They are computed at evaluation time and never stored.
type DerivedMetrics struct {
	StalledHours  float64
	SeedingHours  float64
	StuckProgress bool
	QueuedSamples int
}

// Reconstruct replays an ordered snapshot history and derives the time the
// item has spent stalled and seeding as of now. A closed interval ends at the
// last sample observed in that state; the sample that reveals the transition
// contributes nothing, since the state may have flipped anywhere inside the
// gap. Intervals still open at the end of the history are carried forward to
// now, so totals reflect the item's current ongoing state rather than just
// the last sample. Deterministic and side-effect free.
func Reconstruct(history []models.Snapshot, now time.Time) DerivedMetrics {
	var metrics DerivedMetrics
	if len(history) == 0 {
		return metrics
	}

	var stalledSince, seedingSince time.Time
	var stalledTotal, seedingTotal time.Duration

	var prev *models.Snapshot
	for i := range history {
		snapshot := &history[i]
		state := State(snapshot.State)

		switch state {
		case StateStalled:
			if stalledSince.IsZero() {
				stalledSince = snapshot.CapturedAt
			}
		default:
			if !stalledSince.IsZero() {
				stalledTotal += prev.CapturedAt.Sub(stalledSince)
				stalledSince = time.Time{}
			}
		}

		switch state {
		case StateSeeding:
			if seedingSince.IsZero() {
				seedingSince = snapshot.CapturedAt
			}
		default:
			if !seedingSince.IsZero() {
				seedingTotal += prev.CapturedAt.Sub(seedingSince)
				seedingSince = time.Time{}
			}
		}

		if state == StateQueued {
			metrics.QueuedSamples++
		}

		if prev != nil && prev.Progress == snapshot.Progress {
			if snapshot.CapturedAt.Sub(prev.CapturedAt) > stuckProgressGap {
				metrics.StuckProgress = true
			}
		}
		prev = snapshot
	}

	// open-interval carry-forward
	if !stalledSince.IsZero() && now.After(stalledSince) {
		stalledTotal += now.Sub(stalledSince)
	}
	if !seedingSince.IsZero() && now.After(seedingSince) {
		seedingTotal += now.Sub(seedingSince)
	}

	metrics.StalledHours = stalledTotal.Hours()
	metrics.SeedingHours = seedingTotal.Hours()

	return metrics
}
