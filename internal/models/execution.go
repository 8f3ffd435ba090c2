// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/boxarr/boxarr/internal/dbinterface"
)

// ExecutionRecord is the audit fact written once per rule per scheduler pass.
// A rule that matched nothing still gets a successful zero-item record, which
// establishes that the rule ran.
type ExecutionRecord struct {
	ID             int64     `json:"id"`
	RuleID         int64     `json:"ruleId"`
	UserID         int64     `json:"userId"`
	ItemsProcessed int       `json:"itemsProcessed"`
	Succeeded      bool      `json:"succeeded"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	ExecutedAt     time.Time `json:"executedAt"`
}

type ExecutionStore struct {
	db dbinterface.Querier
}

func NewExecutionStore(db dbinterface.Querier) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Insert(ctx context.Context, record *ExecutionRecord) error {
	if record.ExecutedAt.IsZero() {
		record.ExecutedAt = time.Now().UTC()
	}

	var errMsg sql.NullString
	if record.ErrorMessage != "" {
		errMsg = sql.NullString{String: record.ErrorMessage, Valid: true}
	}

	return s.db.QueryRowContext(ctx, `
		INSERT INTO rule_executions (rule_id, user_id, items_processed, succeeded, error_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		record.RuleID,
		record.UserID,
		record.ItemsProcessed,
		record.Succeeded,
		errMsg,
		record.ExecutedAt,
	).Scan(&record.ID)
}

// ListForUser returns a user's most recent execution records, newest first.
// This is the query path the UI reads outcomes from.
func (s *ExecutionStore) ListForUser(ctx context.Context, userID int64, limit int) ([]*ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, user_id, items_processed, succeeded, error_message, executed_at
		FROM rule_executions
		WHERE user_id = ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ExecutionRecord
	for rows.Next() {
		var record ExecutionRecord
		var errMsg sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.RuleID,
			&record.UserID,
			&record.ItemsProcessed,
			&record.Succeeded,
			&errMsg,
			&record.ExecutedAt,
		); err != nil {
			return nil, err
		}

		record.ErrorMessage = errMsg.String
		records = append(records, &record)
	}

	return records, rows.Err()
}
