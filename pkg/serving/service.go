// Package serving exposes the anomaly ledger over HTTP: listings, row
// lookups, run statistics and the export file. It holds the ledger of
// the latest run and swaps it atomically on refresh.
package serving

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/claimsight-ai/platform/pkg/common/config"
	"github.com/claimsight-ai/platform/pkg/common/kafka"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/detect"
	"github.com/claimsight-ai/platform/pkg/ledger"
	"github.com/claimsight-ai/platform/pkg/observability/metrics"
	"github.com/claimsight-ai/platform/pkg/rules"
)

const statsCacheKey = "claimsight:anomaly-stats"

// ErrNoLedger is returned before the first successful run.
var ErrNoLedger = errors.New("no detection run has completed yet")

// Service owns the current ledger and runs refreshes serially.
type Service struct {
	cfg    *config.Config
	runner *detect.Runner

	mu      sync.RWMutex
	current *ledger.Ledger
	lastRun *detect.Result

	refreshMu sync.Mutex

	redis    *redis.Client
	producer *kafka.Producer
	repo     *ledger.Repository
}

// Options carries the optional infrastructure hooks. Any of them may be
// nil; the service degrades to in-memory behavior.
type Options struct {
	Redis    *redis.Client
	Producer *kafka.Producer
	Repo     *ledger.Repository
}

func NewService(cfg *config.Config, runner *detect.Runner, opts Options) *Service {
	return &Service{
		cfg:      cfg,
		runner:   runner,
		redis:    opts.Redis,
		producer: opts.Producer,
		repo:     opts.Repo,
	}
}

// Refresh reloads the datasets, reruns detection and swaps the ledger.
// Concurrent refresh requests are serialized; readers keep the previous
// ledger until the swap.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	inputs, err := detect.LoadInputs(ctx, s.cfg)
	if err != nil {
		return err
	}

	result, err := s.runner.Run(ctx, inputs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = result.Ledger
	s.lastRun = result
	s.mu.Unlock()

	s.afterRun(ctx, result)
	return nil
}

// afterRun fans the completed run out to the side channels: metrics,
// the stats cache, the run-events topic and the run history table.
func (s *Service) afterRun(ctx context.Context, result *detect.Result) {
	stats := result.Ledger.Stats(result.RowCounts)
	metrics.ObserveRun(
		result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
		stats.TotalAnomalies, stats.RowsAffected, result.RulePanics)
	metrics.ObserveStageCounts(
		stats.ByStage[ledger.DisplayStage(rules.StageDataQuality)],
		stats.ByStage[ledger.DisplayStage(rules.StageSmartDataQuality)],
		stats.ByStage[ledger.DisplayStage(rules.StageBusiness)],
		stats.ByStage[ledger.DisplayStage(rules.StageAnalytics)])

	if s.redis != nil {
		if err := s.redis.Del(ctx, statsCacheKey).Err(); err != nil {
			logger.Log.WithError(err).Warn("failed to invalidate stats cache")
		}
	}

	if s.producer != nil {
		err := s.producer.PublishEvent(ctx, "detection-run-completed", "detection-service", map[string]interface{}{
			"total_anomalies": stats.TotalAnomalies,
			"rows_affected":   stats.RowsAffected,
			"rule_panics":     result.RulePanics,
			"completed_at":    result.CompletedAt.Format(time.RFC3339),
		})
		if err != nil {
			logger.Log.WithError(err).Warn("failed to publish run event")
		}
	}

	if s.repo != nil {
		if _, err := s.repo.SaveRun(ctx, result.StartedAt, result.CompletedAt, result.Ledger); err != nil {
			logger.Log.WithError(err).Warn("failed to persist run summary")
		}
	}
}

// Ledger returns the latest ledger.
func (s *Service) Ledger() (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoLedger
	}
	return s.current, nil
}

// DatasetStats breaks the latest run down per source dataset.
func (s *Service) DatasetStats() (map[string]ledger.DatasetStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoLedger
	}
	return s.current.DatasetStats(s.lastRun.RowCounts), nil
}

// Ready reports whether a ledger is available to serve.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Stats returns the run summary, served from Redis when fresh.
func (s *Service) Stats(ctx context.Context) (ledger.Stats, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, statsCacheKey).Result()
		if err == nil {
			var stats ledger.Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				metrics.ObserveStatsCacheHit()
				return stats, nil
			}
		}
	}

	s.mu.RLock()
	l, last := s.current, s.lastRun
	s.mu.RUnlock()
	if l == nil {
		return ledger.Stats{}, ErrNoLedger
	}
	stats := l.Stats(last.RowCounts)
	metrics.ObserveStatsCacheMiss()

	if s.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.redis.Set(ctx, statsCacheKey, payload, s.cfg.StatsCacheTTL).Err(); err != nil {
				logger.Log.WithError(err).Warn("failed to cache stats")
			}
		}
	}
	return stats, nil
}

// ConsumeRefreshEvents subscribes to the dataset-refresh topic and
// reruns detection for every event. Blocks until the context ends.
func (s *Service) ConsumeRefreshEvents(ctx context.Context, consumer *kafka.Consumer) error {
	return consumer.Consume(ctx, func(ctx context.Context, event kafka.Event) error {
		logger.Log.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("dataset refresh event received")
		return s.Refresh(ctx)
	})
}
