// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boxarr/boxarr/internal/dbinterface"
)

// Snapshot is one timestamped observation of an item's state and transfer
// stats. Snapshots are append-only facts; they are never updated.
type Snapshot struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	ItemID       int64           `json:"itemId"`
	State        string          `json:"state"`
	Progress     float64         `json:"progress"`
	DownloadRate int64           `json:"downloadRate"`
	UploadRate   int64           `json:"uploadRate"`
	Seeds        int             `json:"seeds"`
	Peers        int             `json:"peers"`
	Ratio        float64         `json:"ratio"`
	RawPayload   json.RawMessage `json:"-"`
	// PayloadDigest is the xxhash of the raw payload this observation was made
	// from. It is set even when RawPayload is elided because the payload did
	// not change since the previous snapshot.
	PayloadDigest uint64    `json:"-"`
	CapturedAt    time.Time `json:"capturedAt"`
}

type SnapshotStore struct {
	db dbinterface.Querier
}

func NewSnapshotStore(db dbinterface.Querier) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Insert(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}

	var raw sql.NullString
	if len(snapshot.RawPayload) > 0 {
		raw = sql.NullString{String: string(snapshot.RawPayload), Valid: true}
	}

	return s.db.QueryRowContext(ctx, `
		INSERT INTO snapshots (user_id, item_id, state, progress, download_rate, upload_rate, seeds, peers, ratio, raw_payload, payload_digest, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		snapshot.UserID,
		snapshot.ItemID,
		snapshot.State,
		snapshot.Progress,
		snapshot.DownloadRate,
		snapshot.UploadRate,
		snapshot.Seeds,
		snapshot.Peers,
		snapshot.Ratio,
		raw,
		int64(snapshot.PayloadDigest),
		snapshot.CapturedAt,
	).Scan(&snapshot.ID)
}

// History returns the full ordered snapshot history for one (user, item) pair,
// ascending by capture time. The metrics reconstructor replays this sequence.
func (s *SnapshotStore) History(ctx context.Context, userID, itemID int64) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item_id, state, progress, download_rate, upload_rate, seeds, peers, ratio, raw_payload, payload_digest, captured_at
		FROM snapshots
		WHERE user_id = ? AND item_id = ?
		ORDER BY captured_at ASC, id ASC
	`, userID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// LatestByItemIDs returns the most recent snapshot per item for the given set
// of item ids, keyed by item id. Items with no snapshot are absent.
func (s *SnapshotStore) LatestByItemIDs(ctx context.Context, userID int64, itemIDs []int64) (map[int64]*Snapshot, error) {
	result := make(map[int64]*Snapshot, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, userID)
	for _, id := range itemIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, item_id, state, progress, download_rate, upload_rate, seeds, peers, ratio, raw_payload, payload_digest, captured_at
		FROM snapshots
		WHERE id IN (
			SELECT MAX(id) FROM snapshots
			WHERE user_id = ? AND item_id IN (%s)
			GROUP BY item_id
		)
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	for i := range snapshots {
		result[snapshots[i].ItemID] = &snapshots[i]
	}

	return result, nil
}

// Cleanup deletes snapshots older than the retention cutoff in bounded batches
// so a large backlog never holds the write lock for long. Returns the number
// of rows removed.
func (s *SnapshotStore) Cleanup(ctx context.Context, retentionDays, batchSize int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("retention days must be positive")
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var total int64
	for {
		result, err := s.db.ExecContext(ctx, `
			DELETE FROM snapshots
			WHERE id IN (
				SELECT id FROM snapshots WHERE captured_at < ? LIMIT ?
			)
		`, cutoff, batchSize)
		if err != nil {
			return total, err
		}

		removed, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += removed

		if removed < int64(batchSize) {
			return total, nil
		}
	}
}

func scanSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	var snapshots []Snapshot
	for rows.Next() {
		var snapshot Snapshot
		var raw sql.NullString
		var digest int64

		if err := rows.Scan(
			&snapshot.ID,
			&snapshot.UserID,
			&snapshot.ItemID,
			&snapshot.State,
			&snapshot.Progress,
			&snapshot.DownloadRate,
			&snapshot.UploadRate,
			&snapshot.Seeds,
			&snapshot.Peers,
			&snapshot.Ratio,
			&raw,
			&digest,
			&snapshot.CapturedAt,
		); err != nil {
			return nil, err
		}

		if raw.Valid {
			snapshot.RawPayload = json.RawMessage(raw.String)
		}
		snapshot.PayloadDigest = uint64(digest)
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, rows.Err()
}
