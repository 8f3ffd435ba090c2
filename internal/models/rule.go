// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boxarr/boxarr/internal/dbinterface"
)

var ErrRuleNotFound = errors.New("rule not found")

// ConditionKind selects the value a condition extracts from an item or its
// derived metrics. Unknown kinds evaluate to false rather than erroring, so a
// newer frontend can persist kinds this build does not understand yet.
type ConditionKind string

const (
	// Numeric kinds, compared against Threshold with Operator
	ConditionSeedingHours  ConditionKind = "seeding_hours"
	ConditionStalledHours  ConditionKind = "stalled_hours"
	ConditionSeedCount     ConditionKind = "seed_count"
	ConditionPeerCount     ConditionKind = "peer_count"
	ConditionRatio         ConditionKind = "ratio"
	ConditionProgress      ConditionKind = "progress"
	ConditionAgeHours      ConditionKind = "age_hours"
	ConditionQueuedSamples ConditionKind = "queued_samples"

	// String kinds, matched against Value
	ConditionNameContains  ConditionKind = "name_contains"
	ConditionTracker       ConditionKind = "tracker"
	ConditionDownloadState ConditionKind = "download_state"

	// Boolean kinds, no operator
	ConditionCached          ConditionKind = "cached"
	ConditionPrivate         ConditionKind = "private"
	ConditionLongTermSeeding ConditionKind = "long_term_seeding"
	ConditionStuckProgress   ConditionKind = "stuck_progress"

	// Expression kind: Value holds a boolean expr-lang program over the item
	ConditionExpression ConditionKind = "expression"
)

// Operator compares a numeric extraction against a condition threshold.
type Operator string

const (
	OperatorGT  Operator = "gt"
	OperatorLT  Operator = "lt"
	OperatorGTE Operator = "gte"
	OperatorLTE Operator = "lte"
	OperatorEQ  Operator = "eq"
)

// Combinator aggregates per-condition results into one match decision.
type Combinator string

const (
	CombinatorAnd Combinator = "and"
	CombinatorOr  Combinator = "or"
)

// ActionKind names the remote control operation a rule applies to matched items.
type ActionKind string

const (
	ActionStopSeeding ActionKind = "stop_seeding"
	ActionForceStart  ActionKind = "force_start"
	ActionDelete      ActionKind = "delete"
	ActionArchive     ActionKind = "archive"
)

// Condition is a single typed predicate inside a rule.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Operator  Operator      `json:"operator,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	Value     string        `json:"value,omitempty"`
}

// Action is the operation applied to every item a rule matches.
type Action struct {
	Kind ActionKind `json:"kind"`
}

// Rule is a user-owned "if conditions then action" configuration. The engine
// consumes rules read-only; mutation happens through the HTTP API.
type Rule struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"userId"`
	Name       string      `json:"name"`
	Enabled    bool        `json:"enabled"`
	Conditions []Condition `json:"conditions"`
	Combinator Combinator  `json:"combinator"`
	Action     Action      `json:"action"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type RuleStore struct {
	db dbinterface.Querier
}

func NewRuleStore(db dbinterface.Querier) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Create(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule.Name == "" {
		return nil, errors.New("rule name cannot be empty")
	}
	if rule.Combinator == "" {
		rule.Combinator = CombinatorAnd
	}
	if rule.Combinator != CombinatorAnd && rule.Combinator != CombinatorOr {
		return nil, fmt.Errorf("unknown combinator %q", rule.Combinator)
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	var id int64
	var createdAt, updatedAt time.Time
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO rules (user_id, name, enabled, conditions, combinator, action)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`, rule.UserID, rule.Name, rule.Enabled, string(conditionsJSON), string(rule.Combinator), string(actionJSON)).
		Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	created := *rule
	created.ID = id
	created.CreatedAt = createdAt
	created.UpdatedAt = updatedAt
	return &created, nil
}

func (s *RuleStore) Get(ctx context.Context, id int64) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, enabled, conditions, combinator, action, created_at, updated_at
		FROM rules
		WHERE id = ?
	`, id)

	rule, err := scanRule(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// ListForUser returns all of a user's rules in id order.
func (s *RuleStore) ListForUser(ctx context.Context, userID int64) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT id, user_id, name, enabled, conditions, combinator, action, created_at, updated_at
		FROM rules
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
}

// ListEnabledForUser returns the rules the engine evaluates, in the fixed
// order they execute. Id order keeps side effects reproducible across passes.
func (s *RuleStore) ListEnabledForUser(ctx context.Context, userID int64) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT id, user_id, name, enabled, conditions, combinator, action, created_at, updated_at
		FROM rules
		WHERE user_id = ? AND enabled = 1
		ORDER BY id ASC
	`, userID)
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanRule(scan func(...any) error) (*Rule, error) {
	var rule Rule
	var conditionsJSON, combinator, actionJSON string

	if err := scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&rule.Enabled,
		&conditionsJSON,
		&combinator,
		&actionJSON,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions for rule %d: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &rule.Action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action for rule %d: %w", rule.ID, err)
	}
	rule.Combinator = Combinator(combinator)

	return &rule, nil
}

func (s *RuleStore) Update(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule.Combinator != CombinatorAnd && rule.Combinator != CombinatorOr {
		return nil, fmt.Errorf("unknown combinator %q", rule.Combinator)
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, enabled = ?, conditions = ?, combinator = ?, action = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, rule.Name, rule.Enabled, string(conditionsJSON), string(rule.Combinator), string(actionJSON), rule.ID, rule.UserID)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrRuleNotFound
	}

	return s.Get(ctx, rule.ID)
}

func (s *RuleStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}

	return nil
}
