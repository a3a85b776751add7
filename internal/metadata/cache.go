package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultCache memoizes provider search results keyed by provider and query.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]Candidate, bool)
	Set(ctx context.Context, key string, candidates []Candidate)
}

// Cache provides in-memory caching with TTL for search results.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     []Candidate
	expiresAt time.Time
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	TTL      time.Duration
	MaxItems int
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      15 * time.Minute,
		MaxItems: 1000,
	}
}

// NewCache creates a new cache with the given configuration.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 1000
	}

	c := &Cache{
		items:    make(map[string]cacheItem),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		stop:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves cached candidates. A cached empty result is a hit.
func (c *Cache) Get(_ context.Context, key string) ([]Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores candidates in the cache.
func (c *Cache) Set(_ context.Context, key string, candidates []Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = cacheItem{
		value:     candidates,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Len returns the number of items in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// evictOldest drops expired items, then the soonest-expiring 10% if still
// at capacity. Must be called with the lock held.
func (c *Cache) evictOldest() {
	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}

	if len(c.items) < c.maxItems {
		return
	}

	toRemove := c.maxItems / 10
	if toRemove < 1 {
		toRemove = 1
	}

	var oldest []string
	var oldestTimes []time.Time
	for key, item := range c.items {
		if len(oldest) < toRemove {
			oldest = append(oldest, key)
			oldestTimes = append(oldestTimes, item.expiresAt)
			continue
		}
		for i, t := range oldestTimes {
			if item.expiresAt.Before(t) {
				oldest[i] = key
				oldestTimes[i] = item.expiresAt
				break
			}
		}
	}

	for _, key := range oldest {
		delete(c.items, key)
	}
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// RedisCache shares search results between workers through Redis, so every
// worker process benefits from a search another one already paid for.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedisCache creates a Redis-backed result cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		prefix: "mediashelf:search:",
		logger: logger.With().Str("component", "result-cache").Logger(),
	}
}

// Get reads cached candidates. Redis failures count as misses.
func (r *RedisCache) Get(ctx context.Context, key string) ([]Candidate, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return nil, false
	}

	var candidates []Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil, false
	}
	return candidates, true
}

// Set writes candidates with the cache TTL. Failures are logged only.
func (r *RedisCache) Set(ctx context.Context, key string, candidates []Candidate) {
	if candidates == nil {
		candidates = []Candidate{}
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// CachingMovieTV memoizes movie and series searches. Consecutive episodes of
// one show resolve against the same series search without repeating it.
type CachingMovieTV struct {
	movies MovieProvider
	tv     TVProvider
	cache  ResultCache
}

// NewCachingMovieTV wraps the given providers; either may be nil.
func NewCachingMovieTV(movies MovieProvider, tv TVProvider, cache ResultCache) *CachingMovieTV {
	return &CachingMovieTV{movies: movies, tv: tv, cache: cache}
}

// Movies returns the caching movie provider, or nil if none is wrapped.
func (c *CachingMovieTV) Movies() MovieProvider {
	if c.movies == nil {
		return nil
	}
	return cachingMovies{c}
}

// TV returns the caching TV provider, or nil if none is wrapped.
func (c *CachingMovieTV) TV() TVProvider {
	if c.tv == nil {
		return nil
	}
	return cachingTV{c}
}

func cacheKey(kind, query string, extra ...int) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(foldForMatch(query))
	for _, e := range extra {
		fmt.Fprintf(&b, ":%d", e)
	}
	return b.String()
}

type cachingMovies struct{ c *CachingMovieTV }

func (m cachingMovies) SearchMovies(ctx context.Context, query string, year *int) ([]Candidate, error) {
	key := cacheKey("movie", query)
	if year != nil {
		key = cacheKey("movie", query, *year)
	}
	if hit, ok := m.c.cache.Get(ctx, key); ok {
		return cloneCandidates(hit), nil
	}
	res, err := m.c.movies.SearchMovies(ctx, query, year)
	if err != nil {
		return nil, err
	}
	m.c.cache.Set(ctx, key, res)
	return cloneCandidates(res), nil
}

// Enrich forwards to the wrapped provider when it can enrich.
func (m cachingMovies) Enrich(ctx context.Context, c *Candidate, hint SeriesHint) {
	if e, ok := m.c.movies.(Enricher); ok {
		e.Enrich(ctx, c, hint)
	}
}

type cachingTV struct{ c *CachingMovieTV }

// SearchSeries caches on the query and the season/episode, since the hint
// shapes the candidates the TV adapter returns.
func (t cachingTV) SearchSeries(ctx context.Context, query string, hint SeriesHint) ([]Candidate, error) {
	season, episode := -1, -1
	if hint.Season != nil {
		season = *hint.Season
	}
	if hint.Episode != nil {
		episode = *hint.Episode
	}
	key := cacheKey("tv", query, season, episode)
	if hit, ok := t.c.cache.Get(ctx, key); ok {
		return cloneCandidates(hit), nil
	}
	res, err := t.c.tv.SearchSeries(ctx, query, hint)
	if err != nil {
		return nil, err
	}
	t.c.cache.Set(ctx, key, res)
	return cloneCandidates(res), nil
}

func (t cachingTV) Enrich(ctx context.Context, c *Candidate, hint SeriesHint) {
	if e, ok := t.c.tv.(Enricher); ok {
		e.Enrich(ctx, c, hint)
	}
}

// cloneCandidates copies the slice so callers mutating a candidate during
// enrichment never touch the cached value.
func cloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
