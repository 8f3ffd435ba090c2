// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package automation

import (
	"context"
	"fmt"

	"github.com/boxarr/boxarr/internal/models"
	"github.com/boxarr/boxarr/internal/torbox"
)

// RemoteClient is the subset of the TorBox client the engine needs. Extracted
// as an interface so service tests can run against a fake remote.
type RemoteClient interface {
	MyList(ctx context.Context) ([]torbox.Item, error)
	QueuedList(ctx context.Context) ([]torbox.Item, error)
	ControlTorrent(ctx context.Context, itemID int64, op torbox.TorrentOperation) error
	ControlQueued(ctx context.Context, itemID int64, op torbox.QueuedOperation) error
}

// ClientFactory resolves a user's credential into a RemoteClient.
type ClientFactory interface {
	ClientFor(ctx context.Context, userID int64) (RemoteClient, error)
}

// ClientFactoryFunc adapts a function to the ClientFactory interface.
type ClientFactoryFunc func(ctx context.Context, userID int64) (RemoteClient, error)

func (f ClientFactoryFunc) ClientFor(ctx context.Context, userID int64) (RemoteClient, error) {
	return f(ctx, userID)
}

// ExecuteAction applies a rule's action to one matched item. Each path is a
// single remote round trip with no internal retry; the next scheduler pass is
// the retry. Delete routes to the queued control endpoint when the item has no
// active download state.
func ExecuteAction(ctx context.Context, client RemoteClient, action models.Action, item torbox.Item) error {
	queued := item.Queued || Classify(item) == StateQueued

	switch action.Kind {
	case models.ActionStopSeeding:
		return client.ControlTorrent(ctx, item.ID, torbox.TorrentOpStopSeeding)

	case models.ActionForceStart:
		// only meaningful for queued items
		if !queued {
			return nil
		}
		return client.ControlQueued(ctx, item.ID, torbox.QueuedOpForceStart)

	case models.ActionDelete:
		if queued {
			return client.ControlQueued(ctx, item.ID, torbox.QueuedOpDelete)
		}
		return client.ControlTorrent(ctx, item.ID, torbox.TorrentOpDelete)

	case models.ActionArchive:
		// Archive then delete. A failed delete after a successful archive is
		// reported as a failure but the archive is not rolled back; remote
		// side effects are not revocable.
		if err := client.ControlTorrent(ctx, item.ID, torbox.TorrentOpArchive); err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		if err := client.ControlTorrent(ctx, item.ID, torbox.TorrentOpDelete); err != nil {
			return fmt.Errorf("delete after archive failed: %w", err)
		}
		return nil
	}

	return fmt.Errorf("unsupported action %q", action.Kind)
}
