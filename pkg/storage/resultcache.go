package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
)

const cacheGenerationKey = "analysis:cache:generation"

// ResultCache keeps completed analysis results in Redis keyed by a
// normalized query fingerprint. Invalidation bumps a generation counter
// instead of scanning keys; stale entries age out through the TTL.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ResultCache{client: client, ttl: ttl}
}

// Key fingerprints a query together with its resolved stages and scope.
// The current cache generation is part of the key, so a generation bump
// orphans every older entry at once.
func (c *ResultCache) Key(ctx context.Context, query string, stages []string, scope models.Scope) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(query)),
		strings.Join(stages, ","),
		strings.Join(scope.Regions, ","),
		strings.Join(scope.Specialties, ","),
	)
	return fmt.Sprintf("analysis:result:g%d:%x", c.generation(ctx), h.Sum(nil)[:16])
}

func (c *ResultCache) generation(ctx context.Context) int64 {
	gen, err := c.client.Get(ctx, cacheGenerationKey).Int64()
	if err != nil {
		// Missing counter or transient failure both read as generation 0.
		return 0
	}
	return gen
}

func (c *ResultCache) Get(ctx context.Context, key string) (*models.AnalysisResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("corrupt cached result: %w", err)
	}
	return &result, true, nil
}

func (c *ResultCache) Put(ctx context.Context, key string, result *models.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	logger.WithField("key", key).Debug("Caching analysis result")
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate retires every cached result. Called after facility ingest
// so queries never see pre-ingest analysis.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheGenerationKey).Err()
}
