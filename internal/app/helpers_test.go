package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/app"
	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
	"daily-puzzle-service/internal/infra/memory"
)

// env wires the full engine over the in-memory store with a controllable
// clock.
type env struct {
	store    *memory.Store
	cache    *memory.ProblemCache
	notifier *stubNotifier
	streaks  *app.StreakTracker
	review   *app.ReviewService
	scoring  *app.ScoringEngine
	sched    *app.Scheduler
	boards   *app.LeaderboardService
	admin    *app.AdminService
	ratings  *app.RatingService

	mu  sync.Mutex
	now time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    memory.NewStore(),
		notifier: &stubNotifier{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clk := clock.NewWithNow(time.UTC, e.Now)
	e.cache = memory.NewProblemCache(e.store, time.Minute)
	rules := app.DefaultRules()
	e.streaks = app.NewStreakTracker(e.store, clk)
	e.review = app.NewReviewService(e.store, e.cache, clk, e.notifier, zap.NewNop())
	e.scoring = app.NewScoringEngine(e.cache, e.store, e.streaks, rules, clk, zap.NewNop())
	e.sched = app.NewScheduler(e.store, e.cache, rules, clk, e.notifier, zap.NewNop(), time.UTC)
	e.boards = app.NewLeaderboardService(e.store, e.store, e.store, e.store, clk)
	e.admin = app.NewAdminService(e.store, e.store, clk, zap.NewNop())
	e.ratings = app.NewRatingService(e.store, e.store, e.store, clk)
	return e
}

func (e *env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// submitProblem creates and approves a problem ready for release.
func (e *env) submitProblem(t *testing.T, code, answer, authorID string) domain.Problem {
	t.Helper()
	p, err := e.review.Submit(context.Background(), app.CreateProblemInput{
		Code:       code,
		Statement:  "statement for " + code,
		Answer:     answer,
		Difficulty: 3,
		Setter:     "setter-" + code,
		AuthorID:   authorID,
	})
	if err != nil {
		t.Fatalf("submit problem %s: %v", code, err)
	}
	if err := e.review.Approve(context.Background(), code); err != nil {
		t.Fatalf("approve problem %s: %v", code, err)
	}
	return p
}

// openProblem submits, approves and activates a problem in one go.
func (e *env) openProblem(t *testing.T, code, answer, authorID string) domain.Problem {
	t.Helper()
	e.submitProblem(t, code, answer, authorID)
	p, err := e.sched.Activate(context.Background(), code)
	if err != nil {
		t.Fatalf("activate problem %s: %v", code, err)
	}
	return p
}

type stubNotifier struct {
	mu        sync.Mutex
	opened    []string
	closed    []string
	exhausted int
	requested []string
	decisions []string
}

func (n *stubNotifier) ProblemOpened(_ context.Context, p domain.Problem) {
	n.mu.Lock()
	n.opened = append(n.opened, p.Code)
	n.mu.Unlock()
}

func (n *stubNotifier) ProblemClosed(_ context.Context, p domain.Problem) {
	n.mu.Lock()
	n.closed = append(n.closed, p.Code)
	n.mu.Unlock()
}

func (n *stubNotifier) Exhausted(_ context.Context) {
	n.mu.Lock()
	n.exhausted++
	n.mu.Unlock()
}

func (n *stubNotifier) ReviewRequested(_ context.Context, p domain.Problem) {
	n.mu.Lock()
	n.requested = append(n.requested, p.Code)
	n.mu.Unlock()
}

func (n *stubNotifier) ReviewDecided(_ context.Context, p domain.Problem, approved bool, _ string) {
	n.mu.Lock()
	if approved {
		n.decisions = append(n.decisions, "approve:"+p.Code)
	} else {
		n.decisions = append(n.decisions, "reject:"+p.Code)
	}
	n.mu.Unlock()
}
