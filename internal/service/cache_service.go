package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

// Cache namespaces for listing payloads.
const (
	CacheNamespaceStudents = "students"
	CacheNamespaceClasses  = "classes"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a read-through cache for listings. Every orchestration that
// changes students or classes invalidates the affected namespaces.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// CacheKey builds a stable cache key for a namespace and a filter value.
func CacheKey(namespace string, filter interface{}) string {
	payload, err := json.Marshal(filter)
	if err != nil {
		return namespace + ":unkeyed"
	}
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return fmt.Sprintf("%s:%x", namespace, h.Sum64())
}

// Get attempts to retrieve a cached entry. It returns true on a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops every entry of the given namespaces. Failures are logged
// and leave entries to expire by TTL.
func (s *CacheService) Invalidate(ctx context.Context, namespaces ...string) {
	if !s.Enabled() {
		return
	}
	for _, ns := range namespaces {
		if err := s.repo.DeleteByPattern(ctx, ns+":*"); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("namespace", ns), zap.Error(err))
		}
	}
}
