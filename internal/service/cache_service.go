package service

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/juan-barragan/oraccio/internal/models"
	"github.com/juan-barragan/oraccio/pkg/cache"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService keeps finished job results close to the API so polling
// clients do not hit Postgres for large JSON documents. Cache failures are
// logged and otherwise ignored; the database stays authoritative.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// ResultKey is the cache key of a finished job's result.
func ResultKey(jobID string) string {
	return cache.Key("result", jobID)
}

// Enabled reports whether results are cached at all. Safe on a nil receiver.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Lookup returns the cached result of jobID, if any.
func (s *CacheService) Lookup(ctx context.Context, jobID string) (*models.JobResult, bool) {
	if !s.Enabled() || jobID == "" {
		return nil, false
	}

	var result models.JobResult
	start := time.Now()
	err := s.repo.Get(ctx, ResultKey(jobID), &result)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))

	switch {
	case err == nil:
		return &result, true
	case !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("result cache lookup failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return nil, false
}

// Store caches result for ttl, or the default TTL when ttl is not positive.
func (s *CacheService) Store(ctx context.Context, jobID string, result *models.JobResult, ttl time.Duration) {
	if !s.Enabled() || jobID == "" || result == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	start := time.Now()
	err := s.repo.Set(ctx, ResultKey(jobID), result, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("result cache store failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Forget drops the cached results of the given jobs in one round trip.
func (s *CacheService) Forget(ctx context.Context, jobIDs ...string) {
	jobIDs = lo.Compact(jobIDs)
	if !s.Enabled() || len(jobIDs) == 0 {
		return
	}
	if err := s.repo.Delete(ctx, lo.Map(jobIDs, func(id string, _ int) string { return ResultKey(id) })...); err != nil {
		s.logger.Warn("result cache eviction failed", zap.Strings("job_ids", jobIDs), zap.Error(err))
	}
}
