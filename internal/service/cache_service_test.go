package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/internal/models"
	appErrors "github.com/juan-barragan/oraccio/pkg/errors"
)

type memoryCacheRepo struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if m.failGet != nil {
		return m.failGet
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	_, hit := svc.Lookup(ctx, "job-1")
	assert.False(t, hit)

	svc.Store(ctx, "job-1", &models.JobResult{BestAttempt: 2, Seed: 7}, 0)
	assert.Equal(t, 10*time.Minute, repo.ttls["oraccio:result:job-1"])

	got, hit := svc.Lookup(ctx, "job-1")
	require.True(t, hit)
	assert.Equal(t, 2, got.BestAttempt)
	assert.Equal(t, int64(7), got.Seed)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 1e-9)

	svc.Store(ctx, "job-2", &models.JobResult{}, time.Minute)
	svc.Forget(ctx, "job-1", "", "job-2")
	assert.Empty(t, repo.data)
}

func TestCacheServiceDisabledAndErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	disabled := NewCacheService(repo, nil, time.Minute, nil, false)
	disabled.Store(context.Background(), "k", &models.JobResult{}, 0)
	assert.Empty(t, repo.data)

	var nilCache *CacheService
	nilCache.Forget(context.Background(), "k")
	_, hit := nilCache.Lookup(context.Background(), "k")
	assert.False(t, hit)

	repo.failGet = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	_, hit = svc.Lookup(context.Background(), "k")
	assert.False(t, hit)
}
