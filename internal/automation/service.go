// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/boxarr/boxarr/internal/metrics"
	"github.com/boxarr/boxarr/internal/models"
	"github.com/boxarr/boxarr/internal/torbox"
)

// Config controls the scheduler cadence and concurrency bounds.
type Config struct {
	Interval         time.Duration
	UserBatchSize    int
	MetricsFanout    int64
	RetentionDays    int
	CleanupBatchSize int
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		Interval:         15 * time.Minute,
		UserBatchSize:    5,
		MetricsFanout:    8,
		RetentionDays:    30,
		CleanupBatchSize: 500,
	}
}

// PassStatus is a snapshot of the most recent scheduler pass.
type PassStatus struct {
	Running        bool       `json:"running"`
	LastStartedAt  *time.Time `json:"lastStartedAt,omitempty"`
	LastDurationMS int64      `json:"lastDurationMs"`
	UsersProcessed int        `json:"usersProcessed"`
	UsersFailed    int        `json:"usersFailed"`
}

// Service is the automation scheduler. Each pass discovers users with enabled
// rules, processes them in bounded concurrent batches, and records one
// execution record per rule. All collaborators are injected; the service
// holds no ambient global state.
type Service struct {
	cfg        Config
	users      *models.UserStore
	rules      *models.RuleStore
	snapshots  *models.SnapshotStore
	executions *models.ExecutionStore
	sampler    *Sampler
	clients    ClientFactory
	collector  *metrics.Collector
	now        func() time.Time

	runMu    sync.Mutex // one pass at a time
	statusMu sync.RWMutex
	status   PassStatus
}

func NewService(cfg Config, users *models.UserStore, rules *models.RuleStore, snapshots *models.SnapshotStore, executions *models.ExecutionStore, clients ClientFactory, collector *metrics.Collector) *Service {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.UserBatchSize <= 0 {
		cfg.UserBatchSize = defaults.UserBatchSize
	}
	if cfg.MetricsFanout <= 0 {
		cfg.MetricsFanout = defaults.MetricsFanout
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}
	if cfg.CleanupBatchSize <= 0 {
		cfg.CleanupBatchSize = defaults.CleanupBatchSize
	}

	return &Service{
		cfg:        cfg,
		users:      users,
		rules:      rules,
		snapshots:  snapshots,
		executions: executions,
		sampler:    NewSampler(snapshots),
		clients:    clients,
		collector:  collector,
		now:        time.Now,
	}
}

// Start launches the background scheduler loop.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunPass(ctx); err != nil {
				log.Error().Err(err).Msg("automation: pass failed")
			}
		}
	}
}

// Status returns a snapshot of the most recent pass.
func (s *Service) Status() PassStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// RunPass executes one full scheduler pass: discover eligible users, process
// them in sequential batches with users inside a batch running concurrently,
// then clean up expired snapshots. Per-user failures are contained; they
// never abort the batch or the pass.
func (s *Service) RunPass(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := s.now()
	s.setRunning(true, started)
	defer s.setRunning(false, started)

	userIDs, err := s.users.UsersWithEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover users: %w", err)
	}

	if len(userIDs) == 0 {
		log.Debug().Msg("automation: no users with enabled rules")
		return nil
	}

	log.Info().Int("users", len(userIDs)).Msg("automation: starting pass")
	if s.collector != nil {
		s.collector.PassesTotal.Inc()
	}

	var processed, failed int
	for start := 0; start < len(userIDs); start += s.cfg.UserBatchSize {
		end := min(start+s.cfg.UserBatchSize, len(userIDs))

		var g errgroup.Group
		var mu sync.Mutex
		for _, userID := range userIDs[start:end] {
			g.Go(func() error {
				err := s.processUser(ctx, userID)

				mu.Lock()
				if err != nil {
					failed++
				} else {
					processed++
				}
				mu.Unlock()

				if err != nil {
					log.Error().Err(err).Int64("userID", userID).Msg("automation: user pass failed")
					if s.collector != nil {
						s.collector.UserFailuresTotal.Inc()
					}
				}
				return nil
			})
		}
		g.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if removed, err := s.snapshots.Cleanup(ctx, s.cfg.RetentionDays, s.cfg.CleanupBatchSize); err != nil {
		log.Error().Err(err).Msg("automation: snapshot cleanup failed")
	} else if removed > 0 {
		log.Info().Int64("removed", removed).Msg("automation: cleaned up expired snapshots")
	}

	duration := s.now().Sub(started)
	s.recordPass(processed, failed, duration)
	log.Info().
		Int("processed", processed).
		Int("failed", failed).
		Dur("duration", duration).
		Msg("automation: pass complete")

	return nil
}

func (s *Service) processUser(ctx context.Context, userID int64) error {
	client, err := s.clients.ClientFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	items, err := s.fetchItems(ctx, client)
	if err != nil {
		return err
	}

	itemIDs := make([]int64, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	latest, err := s.snapshots.LatestByItemIDs(ctx, userID, itemIDs)
	if err != nil {
		return fmt.Errorf("failed to load latest snapshots: %w", err)
	}
	s.sampler.CaptureAll(ctx, userID, items, latest)

	metricsByID := s.reconstructAll(ctx, userID, items)

	rules, err := s.rules.ListEnabledForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// Rules run sequentially in load order so side effects are reproducible:
	// an item deleted by an earlier rule is still present in this pass's item
	// list, but the remote call for a later rule will simply fail for it.
	for _, rule := range rules {
		s.executeRule(ctx, client, rule, items, metricsByID)
	}

	return nil
}

// fetchItems loads the active and queued lists in parallel and merges them,
// preferring the active entry when an id appears in both.
func (s *Service) fetchItems(ctx context.Context, client RemoteClient) ([]torbox.Item, error) {
	var active, queued []torbox.Item

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = client.MyList(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch item list: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		queued, err = client.QueuedList(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch queued list: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(active))
	merged := make([]torbox.Item, 0, len(active)+len(queued))
	for _, item := range active {
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range queued {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		merged = append(merged, item)
	}

	return merged, nil
}

// reconstructAll derives metrics per item with a bounded parallel fan-out.
// A failed history load degrades to nil metrics for that item only, which
// makes duration conditions fall back to live-data estimation.
func (s *Service) reconstructAll(ctx context.Context, userID int64, items []torbox.Item) map[int64]*DerivedMetrics {
	result := make(map[int64]*DerivedMetrics, len(items))
	if len(items) == 0 {
		return result
	}

	now := s.now()
	sem := semaphore.NewWeighted(s.cfg.MetricsFanout)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(item torbox.Item) {
			defer wg.Done()
			defer sem.Release(1)

			history, err := s.snapshots.History(ctx, userID, item.ID)
			if err != nil {
				log.Debug().Err(err).
					Int64("userID", userID).
					Int64("itemID", item.ID).
					Msg("automation: failed to load snapshot history")
				return
			}

			derived := Reconstruct(history, now)
			mu.Lock()
			result[item.ID] = &derived
			mu.Unlock()
		}(item)
	}

	wg.Wait()
	return result
}

// executeRule evaluates one rule against the item set, applies its action to
// every match, and writes exactly one execution record. An action failure for
// one item does not stop the remaining items; it marks the record failed.
func (s *Service) executeRule(ctx context.Context, client RemoteClient, rule *models.Rule, items []torbox.Item, metricsByID map[int64]*DerivedMetrics) {
	matched := EvaluateRule(rule, items, metricsByID, s.now())
	if s.collector != nil {
		s.collector.RulesEvaluatedTotal.Inc()
	}

	var failures []string
	for _, item := range matched {
		if err := ExecuteAction(ctx, client, rule.Action, item); err != nil {
			log.Warn().Err(err).
				Int64("ruleID", rule.ID).
				Int64("itemID", item.ID).
				Str("action", string(rule.Action.Kind)).
				Msg("automation: action failed")
			failures = append(failures, fmt.Sprintf("item %d: %v", item.ID, err))
			if s.collector != nil {
				s.collector.ActionFailuresTotal.Inc()
			}
			continue
		}
		if s.collector != nil {
			s.collector.ActionsTotal.Inc()
		}
	}

	record := &models.ExecutionRecord{
		RuleID:         rule.ID,
		UserID:         rule.UserID,
		ItemsProcessed: len(matched),
		Succeeded:      len(failures) == 0,
		ExecutedAt:     s.now().UTC(),
	}
	if len(failures) > 0 {
		record.ErrorMessage = strings.Join(failures, "; ")
	}

	// A store failure here must not retroactively fail the actions that
	// already ran; log it and move on.
	if err := s.executions.Insert(ctx, record); err != nil {
		log.Error().Err(err).Int64("ruleID", rule.ID).Msg("automation: failed to record execution")
	}
}

func (s *Service) setRunning(running bool, started time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Running = running
	if running {
		s.status.LastStartedAt = &started
	}
}

func (s *Service) recordPass(processed, failed int, duration time.Duration) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.UsersProcessed = processed
	s.status.UsersFailed = failed
	s.status.LastDurationMS = duration.Milliseconds()
}
