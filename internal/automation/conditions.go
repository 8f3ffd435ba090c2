// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package automation

import (
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/boxarr/boxarr/internal/models"
	"github.com/boxarr/boxarr/internal/torbox"
)

// Evaluate returns whether a single condition holds for an item. Numeric kinds
// compare an extracted scalar against the threshold; string and boolean kinds
// ignore the operator. Unknown kinds evaluate to false. metrics may be nil, in
// which case duration kinds fall back to an estimate from the item's own
// timestamps.
func Evaluate(cond models.Condition, item torbox.Item, metrics *DerivedMetrics, now time.Time) bool {
	switch cond.Kind {
	case models.ConditionSeedingHours:
		return compare(seedingHours(item, metrics, now), cond.Operator, cond.Threshold)
	case models.ConditionStalledHours:
		return compare(stalledHours(item, metrics, now), cond.Operator, cond.Threshold)
	case models.ConditionSeedCount:
		return compare(float64(item.Seeds), cond.Operator, cond.Threshold)
	case models.ConditionPeerCount:
		return compare(float64(item.Peers), cond.Operator, cond.Threshold)
	case models.ConditionRatio:
		return compare(item.Ratio, cond.Operator, cond.Threshold)
	case models.ConditionProgress:
		return compare(item.Progress, cond.Operator, cond.Threshold)
	case models.ConditionAgeHours:
		if item.CreatedAt.IsZero() {
			return false
		}
		return compare(now.Sub(item.CreatedAt).Hours(), cond.Operator, cond.Threshold)
	case models.ConditionQueuedSamples:
		if metrics == nil {
			return false
		}
		return compare(float64(metrics.QueuedSamples), cond.Operator, cond.Threshold)

	case models.ConditionNameContains:
		return cond.Value != "" && strings.Contains(strings.ToLower(item.Name), strings.ToLower(cond.Value))
	case models.ConditionTracker:
		return cond.Value != "" && strings.Contains(strings.ToLower(item.Tracker), strings.ToLower(cond.Value))
	case models.ConditionDownloadState:
		return string(Classify(item)) == cond.Value

	case models.ConditionCached:
		return item.Cached
	case models.ConditionPrivate:
		return item.Private
	case models.ConditionLongTermSeeding:
		return item.LongTermSeeding
	case models.ConditionStuckProgress:
		return metrics != nil && metrics.StuckProgress

	case models.ConditionExpression:
		return evaluateExpression(cond.Value, item, metrics)
	}

	// unknown kind: fail closed
	return false
}

// EvaluateRule returns the items a rule matches, preserving input order.
// An empty condition list matches everything under AND and nothing under OR.
func EvaluateRule(rule *models.Rule, items []torbox.Item, metricsByItemID map[int64]*DerivedMetrics, now time.Time) []torbox.Item {
	var matched []torbox.Item
	for _, item := range items {
		if matchesRule(rule, item, metricsByItemID[item.ID], now) {
			matched = append(matched, item)
		}
	}
	return matched
}

func matchesRule(rule *models.Rule, item torbox.Item, metrics *DerivedMetrics, now time.Time) bool {
	if rule.Combinator == models.CombinatorOr {
		for _, cond := range rule.Conditions {
			if Evaluate(cond, item, metrics, now) {
				return true
			}
		}
		return false
	}

	// AND (and any unrecognized combinator): all conditions must pass, so an
	// empty list matches everything.
	for _, cond := range rule.Conditions {
		if !Evaluate(cond, item, metrics, now) {
			return false
		}
	}
	return true
}

func compare(value float64, op models.Operator, threshold float64) bool {
	switch op {
	case models.OperatorGT:
		return value > threshold
	case models.OperatorLT:
		return value < threshold
	case models.OperatorGTE:
		return value >= threshold
	case models.OperatorLTE:
		return value <= threshold
	case models.OperatorEQ:
		return value == threshold
	}
	return false
}

// seedingHours prefers reconstructed metrics; without any snapshot history it
// approximates from the item's own timestamps while it is currently seeding.
func seedingHours(item torbox.Item, metrics *DerivedMetrics, now time.Time) float64 {
	if metrics != nil {
		return metrics.SeedingHours
	}
	if Classify(item) == StateSeeding && !item.UpdatedAt.IsZero() && now.After(item.UpdatedAt) {
		return now.Sub(item.UpdatedAt).Hours()
	}
	return 0
}

func stalledHours(item torbox.Item, metrics *DerivedMetrics, now time.Time) float64 {
	if metrics != nil {
		return metrics.StalledHours
	}
	if Classify(item) == StateStalled && !item.UpdatedAt.IsZero() && now.After(item.UpdatedAt) {
		return now.Sub(item.UpdatedAt).Hours()
	}
	return 0
}

var exprCache sync.Map // expression source -> *vm.Program

// evaluateExpression runs a user-supplied boolean expression over the item.
// Compile and runtime errors evaluate to false, matching the fail-closed
// behavior of unknown condition kinds.
func evaluateExpression(source string, item torbox.Item, metrics *DerivedMetrics) bool {
	if source == "" {
		return false
	}

	env := map[string]any{
		"Name":     item.Name,
		"Hash":     item.Hash,
		"State":    string(Classify(item)),
		"Tracker":  item.Tracker,
		"Size":     item.Size,
		"Progress": item.Progress,
		"Ratio":    item.Ratio,
		"Seeds":    item.Seeds,
		"Peers":    item.Peers,
		"Cached":   item.Cached,
		"Private":  item.Private,

		"LongTermSeeding": item.LongTermSeeding,
	}
	if metrics != nil {
		env["SeedingHours"] = metrics.SeedingHours
		env["StalledHours"] = metrics.StalledHours
		env["StuckProgress"] = metrics.StuckProgress
		env["QueuedSamples"] = metrics.QueuedSamples
	} else {
		env["SeedingHours"] = 0.0
		env["StalledHours"] = 0.0
		env["StuckProgress"] = false
		env["QueuedSamples"] = 0
	}

	program, ok := exprCache.Load(source)
	if !ok {
		compiled, err := expr.Compile(source, expr.Env(env), expr.AsBool())
		if err != nil {
			log.Debug().Err(err).Str("expression", source).Msg("automation: expression failed to compile")
			return false
		}
		program, _ = exprCache.LoadOrStore(source, compiled)
	}

	result, err := expr.Run(program.(*vm.Program), env)
	if err != nil {
		log.Debug().Err(err).Str("expression", source).Msg("automation: expression failed to run")
		return false
	}

	matched, ok := result.(bool)
	return ok && matched
}
