package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// ErrCacheMiss is returned when a key is absent
var ErrCacheMiss = errors.New("cache miss")

// RedisCache wraps the Redis client with typed operations
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return NewRedisFromClient(client, cfg.KeyPrefix, cfg.CacheTTL, log), nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *redis.Client, keyPrefix string, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    log,
	}
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

// key prepends the namespace prefix to a key
func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set stores a value in cache with optional TTL
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// SetJSON marshals and stores a value in cache
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixedKeys...).Err()
}

// Cache key prefixes
const (
	KeyAnalysisPrefix  = "cache:analysis:"
	KeyRateLimitPrefix = "rate_limit:"
	KeyLockPrefix      = "lock:"
	KeyRunStatus       = "monitor:status"
)

// AnalysisKey derives a stable cache key from the analyzed text fields
func AnalysisKey(kind string, fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// CacheAssessment stores a risk assessment under an analysis key
func (c *RedisCache) CacheAssessment(ctx context.Context, key string, assessment any) error {
	return c.SetJSON(ctx, KeyAnalysisPrefix+key, assessment, c.ttl)
}

// GetCachedAssessment loads a cached assessment into dest
func (c *RedisCache) GetCachedAssessment(ctx context.Context, key string, dest any) error {
	return c.GetJSON(ctx, KeyAnalysisPrefix+key, dest)
}

// SaveRunStatus publishes the latest monitor status for other processes
func (c *RedisCache) SaveRunStatus(ctx context.Context, status any) error {
	return c.SetJSON(ctx, KeyRunStatus, status, 0)
}

// LoadRunStatus reads the status written by SaveRunStatus
func (c *RedisCache) LoadRunStatus(ctx context.Context, dest any) error {
	return c.GetJSON(ctx, KeyRunStatus, dest)
}

// Lock is a held distributed lock
type Lock struct {
	key   string
	token string
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// AcquireLock attempts to take a distributed lock. A nil Lock with a nil
// error means another holder owns it.
func (c *RedisCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: c.key(KeyLockPrefix + name), token: uuid.NewString()}
	ok, err := c.client.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// ReleaseLock releases a lock if it is still owned by the caller
func (c *RedisCache) ReleaseLock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, c.client, []string{lock.key}, lock.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// CheckRateLimit checks and increments the rate limit counter
// Returns (allowed, remaining, resetTime, error)
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := time.Now()
	bucket := now.Unix() / int64(window.Seconds())
	windowKey := c.key(fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, bucket))

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := time.Unix((bucket+1)*int64(window.Seconds()), 0)

	return count <= limit, remaining, resetTime, nil
}

// AssessmentCache memoizes profile and post assessments
type AssessmentCache struct {
	cache *RedisCache
}

// NewAssessmentCache creates an assessment cache on top of Redis
func NewAssessmentCache(c *RedisCache) *AssessmentCache {
	return &AssessmentCache{cache: c}
}

// GetProfile returns a cached profile assessment
func (a *AssessmentCache) GetProfile(ctx context.Context, p models.RawProfile) (*models.RiskAssessment, error) {
	var out models.RiskAssessment
	if err := a.cache.GetCachedAssessment(ctx, profileKey(p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutProfile caches a profile assessment
func (a *AssessmentCache) PutProfile(ctx context.Context, p models.RawProfile, assessment *models.RiskAssessment) error {
	return a.cache.CacheAssessment(ctx, profileKey(p), assessment)
}

// GetPost returns a cached post assessment
func (a *AssessmentCache) GetPost(ctx context.Context, text string) (*models.PostAssessment, error) {
	var out models.PostAssessment
	if err := a.cache.GetCachedAssessment(ctx, AnalysisKey("post", text), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutPost caches a post assessment
func (a *AssessmentCache) PutPost(ctx context.Context, text string, assessment *models.PostAssessment) error {
	return a.cache.CacheAssessment(ctx, AnalysisKey("post", text), assessment)
}

func profileKey(p models.RawProfile) string {
	return AnalysisKey("profile", p.Description, p.PostText, p.Email)
}
