package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-puzzle-service/internal/domain"
)

type countingSource struct {
	problems map[string]domain.Problem
	calls    atomic.Int64
}

func (s *countingSource) ByCode(_ context.Context, code string) (domain.Problem, error) {
	s.calls.Add(1)
	p, ok := s.problems[code]
	if !ok {
		return domain.Problem{}, domain.ErrNotFound
	}
	return p, nil
}

func newCacheUnderTest(t *testing.T) (*ProblemCache, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opens := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	closes := opens.Add(24 * time.Hour)
	source := &countingSource{problems: map[string]domain.Problem{
		"1": {
			ID:       1,
			Code:     "1",
			Answer:   "alpha",
			AuthorID: "author-1",
			OpensAt:  &opens,
			ClosesAt: &closes,
		},
		"2": {ID: 2, Code: "2", Answer: "beta", AuthorID: "author-2"},
	}}
	return NewProblemCache(client, source, time.Minute), source, mr
}

func TestCacheFillAndHit(t *testing.T) {
	ctx := context.Background()
	cache, source, mr := newCacheUnderTest(t)

	p, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "alpha", p.Answer)
	assert.Equal(t, "author-1", p.AuthorID)
	require.NotNil(t, p.OpensAt)
	assert.True(t, p.OpensAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, p.ClosesAt)

	assert.True(t, mr.Exists("problem:code:1"))

	// Second lookup is served from the hash.
	p, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.Answer)
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestCacheNilWindowRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newCacheUnderTest(t)

	// Fill, then read back from the hash: a problem without a window must
	// come back with nil bounds, not zero times.
	_, err := cache.ByCode(ctx, "2")
	require.NoError(t, err)
	p, err := cache.ByCode(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, p.OpensAt)
	assert.Nil(t, p.ClosesAt)
}

func TestCacheMiss(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newCacheUnderTest(t)

	_, err := cache.ByCode(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, source, mr := newCacheUnderTest(t)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)
	cache.Invalidate(ctx, "1")
	assert.False(t, mr.Exists("problem:code:1"))

	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	cache, source, mr := newCacheUnderTest(t)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)
	_, err = cache.ByCode(ctx, "2")
	require.NoError(t, err)

	cache.InvalidateAll(ctx)
	assert.False(t, mr.Exists("problem:code:1"))
	assert.False(t, mr.Exists("problem:code:2"))
	assert.False(t, mr.Exists("problem:codes"))

	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), source.calls.Load())
}

func TestCacheTTLWithinJitterBand(t *testing.T) {
	ctx := context.Background()
	cache, _, mr := newCacheUnderTest(t)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)

	ttl := mr.TTL("problem:code:1")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+6*time.Second)
}

func TestCacheEntryExpires(t *testing.T) {
	ctx := context.Background()
	cache, source, mr := newCacheUnderTest(t)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)

	// Past TTL plus the 10% jitter ceiling the hash is gone.
	mr.FastForward(70 * time.Second)
	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.calls.Load())
}
