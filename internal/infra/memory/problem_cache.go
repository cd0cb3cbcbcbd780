package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"daily-puzzle-service/internal/domain"
)

// ProblemSource loads a problem by code from the backing store.
type ProblemSource interface {
	ByCode(ctx context.Context, code string) (domain.Problem, error)
}

// ProblemCache caches code lookups with TTL to spare the store a round trip
// per attempt. Lifecycle mutations must invalidate explicitly.
type ProblemCache struct {
	source ProblemSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedProblem
}

type cachedProblem struct {
	problem   domain.Problem
	expiresAt time.Time
}

func NewProblemCache(source ProblemSource, ttl time.Duration) *ProblemCache {
	return &ProblemCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedProblem),
	}
}

func (c *ProblemCache) ByCode(ctx context.Context, code string) (domain.Problem, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.problem, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.problem, nil
		}
		c.mu.RUnlock()

		problem, err := c.source.ByCode(ctx, code)
		if err != nil {
			return domain.Problem{}, err
		}

		c.mu.Lock()
		c.cache[code] = cachedProblem{
			problem:   problem,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return problem, nil
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return result.(domain.Problem), nil
}

func (c *ProblemCache) Invalidate(_ context.Context, code string) {
	c.mu.Lock()
	delete(c.cache, code)
	c.mu.Unlock()
}

func (c *ProblemCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	c.cache = make(map[string]cachedProblem)
	c.mu.Unlock()
}

func (c *ProblemCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
