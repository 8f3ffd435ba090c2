// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package automation

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/boxarr/boxarr/internal/models"
	"github.com/boxarr/boxarr/internal/torbox"
)

// ShouldSample reports whether a new snapshot should be recorded for an item.
// Always true when no prior snapshot exists or the classified state changed.
// Non-terminal states are re-sampled every cycle so duration metrics stay
// fresh; an unchanged terminal state is never re-sampled, which bounds storage
// growth for long-lived completed items.
func ShouldSample(item torbox.Item, last *models.Snapshot) bool {
	state := Classify(item)

	if last == nil {
		return true
	}
	if State(last.State) != state {
		return true
	}
	return !state.Terminal()
}

// Sampler records item state observations into the snapshot store.
type Sampler struct {
	snapshots *models.SnapshotStore
	now       func() time.Time
}

func NewSampler(snapshots *models.SnapshotStore) *Sampler {
	return &Sampler{
		snapshots: snapshots,
		now:       time.Now,
	}
}

// CaptureAll samples every item that needs a new snapshot, given the latest
// prior snapshot per item. Each snapshot carries an xxhash digest of the raw
// payload; when the digest matches the previous snapshot's, the payload
// itself is elided so re-sampling a quiet item costs one small row instead of
// a full payload copy. Insert failures are logged and skipped; a missed
// sample only widens one interval in the reconstruction. Returns the number
// of snapshots written.
func (s *Sampler) CaptureAll(ctx context.Context, userID int64, items []torbox.Item, latest map[int64]*models.Snapshot) int {
	var captured int
	for _, item := range items {
		last := latest[item.ID]
		if !ShouldSample(item, last) {
			continue
		}

		snapshot := &models.Snapshot{
			UserID:       userID,
			ItemID:       item.ID,
			State:        string(Classify(item)),
			Progress:     item.Progress,
			DownloadRate: item.DownloadSpeed,
			UploadRate:   item.UploadSpeed,
			Seeds:        item.Seeds,
			Peers:        item.Peers,
			Ratio:        item.Ratio,
			RawPayload:   item.Raw,
			CapturedAt:   s.now().UTC(),
		}

		if len(item.Raw) > 0 {
			snapshot.PayloadDigest = xxhash.Sum64(item.Raw)
			if last != nil && last.PayloadDigest == snapshot.PayloadDigest {
				snapshot.RawPayload = nil
			}
		}

		if err := s.snapshots.Insert(ctx, snapshot); err != nil {
			log.Error().Err(err).
				Int64("userID", userID).
				Int64("itemID", item.ID).
				Msg("automation: failed to insert snapshot")
			continue
		}
		captured++
	}

	return captured
}
