package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

// CacheRepository abstracts the Redis-backed cache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the cache repository with logging and metrics. It is
// nil-safe so callers can run without Redis configured.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	logger  *zap.Logger
}

func NewCacheService(repo CacheRepository, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if repo == nil {
		return nil
	}
	return &CacheService{repo: repo, metrics: metrics, logger: logger}
}

// Get fetches a cached value into dest. Returns false on miss or error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if s == nil {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

// Set stores value under key, logging failures without surfacing them.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s == nil {
		return
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateBalances drops cached balance summaries for a user.
func (s *CacheService) InvalidateBalances(ctx context.Context, userID string) {
	if s == nil {
		return
	}
	pattern := fmt.Sprintf("balances:%s:*", userID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// InvalidateLeaveTypes drops the cached leave type catalogue.
func (s *CacheService) InvalidateLeaveTypes(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, "leave_types:*"); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", "leave_types:*"), zap.Error(err))
	}
}
