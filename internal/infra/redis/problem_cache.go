package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"daily-puzzle-service/internal/domain"
)

// ProblemSource loads a problem by code from the backing store.
type ProblemSource interface {
	ByCode(ctx context.Context, code string) (domain.Problem, error)
}

// ProblemCache caches the scoring-relevant fields of a problem in Redis (one
// hash per code) and falls back to the source on cache miss. Cached form:
//
//	HSET problem:code:{code} id answer author opensAt closesAt
//
// Statement and metadata are not cached; scoring never reads them.
type ProblemCache struct {
	client *redis.Client
	source ProblemSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewProblemCache(client *redis.Client, source ProblemSource, ttl time.Duration) *ProblemCache {
	return &ProblemCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ProblemCache) ByCode(ctx context.Context, code string) (domain.Problem, error) {
	key := c.key(code)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return problemFromCache(code, fields), nil
	}

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return problemFromCache(code, fields), nil
		}

		problem, err := c.source.ByCode(ctx, code)
		if err != nil {
			return domain.Problem{}, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"id", problem.ID,
			"answer", problem.Answer,
			"author", problem.AuthorID,
			"opensAt", formatInstant(problem.OpensAt),
			"closesAt", formatInstant(problem.ClosesAt),
		)
		pipe.SAdd(ctx, codesKey, code)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return problem, nil
	})
	if err != nil {
		return domain.Problem{}, err
	}
	return result.(domain.Problem), nil
}

// Invalidate drops one cached code after its window or status changed.
func (c *ProblemCache) Invalidate(ctx context.Context, code string) {
	_ = c.client.Del(ctx, c.key(code)).Err()
	_ = c.client.SRem(ctx, codesKey, code).Err()
}

// InvalidateAll drops every cached code; compaction renumbers codes other
// than the rejected one.
func (c *ProblemCache) InvalidateAll(ctx context.Context) {
	codes, err := c.client.SMembers(ctx, codesKey).Result()
	if err != nil {
		return
	}
	pipe := c.client.Pipeline()
	for _, code := range codes {
		pipe.Del(ctx, c.key(code))
	}
	pipe.Del(ctx, codesKey)
	_, _ = pipe.Exec(ctx)
}

const codesKey = "problem:codes"

func (c *ProblemCache) key(code string) string {
	return "problem:code:" + code
}

func (c *ProblemCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func problemFromCache(code string, fields map[string]string) domain.Problem {
	id, _ := strconv.ParseInt(fields["id"], 10, 64)
	return domain.Problem{
		ID:       id,
		Code:     code,
		Answer:   fields["answer"],
		AuthorID: fields["author"],
		OpensAt:  parseInstant(fields["opensAt"]),
		ClosesAt: parseInstant(fields["closesAt"]),
	}
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}
