package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFromClient(client, "hw:", time.Hour, logger.NewNop()), mr
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONRoundTripUsesPrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}, 0))
	assert.True(t, mr.Exists("hw:k"))

	var got map[string]int
	require.NoError(t, c.GetJSON(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])
}

func TestAssessmentCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	ac := NewAssessmentCache(c)

	profile := models.RawProfile{Description: "Hyaluron Pen ab 79€"}
	_, err := ac.GetProfile(ctx, profile)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, ac.PutProfile(ctx, profile, &models.RiskAssessment{RiskScore: 70}))
	got, err := ac.GetProfile(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.RiskScore)

	// a different profile text must not hit the same entry
	_, err = ac.GetProfile(ctx, models.RawProfile{Description: "anders"})
	assert.ErrorIs(t, err, ErrCacheMiss)

	mr.FastForward(2 * time.Hour)
	_, err = ac.GetProfile(ctx, profile)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAnalysisKeySeparatesFields(t *testing.T) {
	assert.NotEqual(t, AnalysisKey("p", "ab", "c"), AnalysisKey("p", "a", "bc"))
	assert.Equal(t, AnalysisKey("p", "x"), AnalysisKey("p", "x"))
}

func TestLockIsExclusive(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	first, err := c.AcquireLock(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.AcquireLock(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, c.ReleaseLock(ctx, first))
	assert.False(t, mr.Exists("hw:lock:monitor"))

	third, err := c.AcquireLock(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestReleaseLockKeepsForeignLock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	stale, err := c.AcquireLock(ctx, "monitor", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	current, err := c.AcquireLock(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, c.ReleaseLock(ctx, stale))
	assert.True(t, mr.Exists("hw:lock:monitor"))
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := c.CheckRateLimit(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, remaining, reset, err := c.CheckRateLimit(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.True(t, reset.After(time.Now()))
}
