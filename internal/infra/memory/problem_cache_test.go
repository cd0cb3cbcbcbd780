package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-puzzle-service/internal/domain"
)

type countingSource struct {
	store *Store
	calls atomic.Int64
}

func (s *countingSource) ByCode(ctx context.Context, code string) (domain.Problem, error) {
	s.calls.Add(1)
	return s.store.ByCode(ctx, code)
}

func seedProblem(t *testing.T, store *Store, code string) domain.Problem {
	t.Helper()
	p := domain.Problem{
		Code:         code,
		Statement:    "statement",
		Answer:       "answer",
		Difficulty:   3,
		AuthorID:     "author-1",
		ReviewStatus: domain.ReviewApproved,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Insert(context.Background(), &p))
	return p
}

func TestProblemCacheServesFromCache(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{store: NewStore()}
	seedProblem(t, source.store, "1")
	cache := NewProblemCache(source, time.Minute)

	for i := 0; i < 5; i++ {
		p, err := cache.ByCode(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "1", p.Code)
	}
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestProblemCacheMissPassesThroughError(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{store: NewStore()}
	cache := NewProblemCache(source, time.Minute)

	_, err := cache.ByCode(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Misses are not cached.
	_, err = cache.ByCode(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestProblemCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{store: NewStore()}
	seedProblem(t, source.store, "1")
	cache := NewProblemCache(source, time.Minute)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)
	cache.Invalidate(ctx, "1")
	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.calls.Load())
}

func TestProblemCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{store: NewStore()}
	seedProblem(t, source.store, "1")
	seedProblem(t, source.store, "warmup")
	cache := NewProblemCache(source, time.Minute)

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)
	_, err = cache.ByCode(ctx, "warmup")
	require.NoError(t, err)
	cache.InvalidateAll(ctx)
	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	_, err = cache.ByCode(ctx, "warmup")
	require.NoError(t, err)
	assert.Equal(t, int64(4), source.calls.Load())
}

func TestProblemCacheExpiry(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{store: NewStore()}
	seedProblem(t, source.store, "1")

	cache := NewProblemCache(source, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, err := cache.ByCode(ctx, "1")
	require.NoError(t, err)

	// Past TTL plus the 10% jitter ceiling the entry must be refetched.
	now = now.Add(70 * time.Second)
	_, err = cache.ByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.calls.Load())
}
