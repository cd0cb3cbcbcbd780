package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-puzzle-service/internal/domain"
)

func TestOverallTieBreakByFirstSolve(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")

	// Solver A lands 950 at T+0 (one wrong, then correct); solver B lands
	// 999 two minutes later, evened out to 950 by a grant. Only first-solve
	// time separates them.
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "nope")
	require.NoError(t, err)
	resA, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1000, resA.Points)
	assert.Equal(t, 950, resA.ProblemTotal)

	e.advance(2 * time.Minute)
	resB, err := e.scoring.SubmitAttempt(ctx, "solver-b", "1", "alpha")
	require.NoError(t, err)
	assert.Equal(t, 999, resB.Points)
	require.NoError(t, e.admin.Grant(ctx, "solver-b", -49, "tie restored"))

	board, err := e.boards.Overall(ctx, 10)
	require.NoError(t, err)
	// Both solvers plus the author's two bonus rows.
	require.Len(t, board.Entries, 3)
	assert.Equal(t, "solver-a", board.Entries[0].UserID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 950, board.Entries[0].Points)
	assert.Equal(t, "solver-b", board.Entries[1].UserID)
	assert.Equal(t, 2, board.Entries[1].Rank)
	assert.Equal(t, 950, board.Entries[1].Points)
	assert.Equal(t, "author-1", board.Entries[2].UserID)
	assert.Equal(t, 40, board.Entries[2].Points)
}

func TestPerProblemBoardExcludesPenaltyOnlyUsers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.openProblem(t, "1", "alpha", "author-1")

	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)
	_, err = e.scoring.SubmitAttempt(ctx, "solver-b", "1", "nope")
	require.NoError(t, err)

	board, err := e.boards.ForProblem(ctx, p.Code, 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "solver-a", board.Entries[0].UserID)
	assert.Equal(t, "author-1", board.Entries[1].UserID)

	// The penalty still counts on the overall board.
	overall, err := e.boards.Overall(ctx, 10)
	require.NoError(t, err)
	require.Len(t, overall.Entries, 3)
	assert.Equal(t, "solver-b", overall.Entries[2].UserID)
	assert.Equal(t, -50, overall.Entries[2].Points)
	assert.Zero(t, overall.Entries[2].Solves)
}

func TestTodayBoardUsesActiveProblem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)

	e.advance(time.Hour)
	e.submitProblem(t, "2", "beta", "author-2")
	_, err = e.sched.Activate(ctx, "")
	require.NoError(t, err)
	_, err = e.scoring.SubmitAttempt(ctx, "solver-b", "2", "beta")
	require.NoError(t, err)

	board, err := e.boards.Today(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "2", board.Period)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "solver-b", board.Entries[0].UserID)
	assert.Equal(t, "author-2", board.Entries[1].UserID)
}

func TestRankUnrankedIsZero(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)

	rank, err := e.boards.Rank(ctx, "solver-a")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	rank, err = e.boards.Rank(ctx, "never-played")
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestCuratorLeaderboard(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)
	require.NoError(t, e.ratings.Rate(ctx, "solver-a", "1", 5))

	e.advance(25 * time.Hour)
	e.openProblem(t, "2", "beta", "author-1")
	e.advance(25 * time.Hour)
	e.openProblem(t, "3", "gamma", "author-2")
	_, err = e.scoring.SubmitAttempt(ctx, "solver-a", "3", "gamma")
	require.NoError(t, err)
	require.NoError(t, e.ratings.Rate(ctx, "solver-a", "3", 4))

	curators, err := e.boards.Curators(ctx, 10)
	require.NoError(t, err)
	require.Len(t, curators, 2)
	assert.Equal(t, "author-1", curators[0].AuthorID)
	assert.Equal(t, 2, curators[0].ProblemsCreated)
	assert.InDelta(t, 5.0, curators[0].AvgRating, 0.001)
	assert.Equal(t, 1, curators[0].RatingsCount)
	assert.Equal(t, "author-2", curators[1].AuthorID)
	assert.Equal(t, 1, curators[1].ProblemsCreated)
	assert.InDelta(t, 4.0, curators[1].AvgRating, 0.001)
}

func TestRatingRequiresSolve(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")

	err := e.ratings.Rate(ctx, "solver-a", "1", 4)
	assert.ErrorIs(t, err, domain.ErrNotSolved)

	_, err = e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)
	assert.NoError(t, e.ratings.Rate(ctx, "solver-a", "1", 4))
	assert.True(t, domain.IsValidation(e.ratings.Rate(ctx, "solver-a", "1", 9)))
	assert.ErrorIs(t, e.ratings.Rate(ctx, "solver-a", "404", 3), domain.ErrNotFound)
}

func TestUserStats(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)

	stats, err := e.boards.UserStats(ctx, "solver-a")
	require.NoError(t, err)
	assert.Equal(t, 1000, stats.TotalPoints)
	assert.Equal(t, 1, stats.TotalSolves)
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, 1, stats.CurrentStreak)

	stats, err = e.boards.UserStats(ctx, "never-played")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPoints)
	assert.Zero(t, stats.Rank)
}

func TestGrantAndUnscore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "alpha", "author-1")
	_, err := e.scoring.SubmitAttempt(ctx, "solver-a", "1", "alpha")
	require.NoError(t, err)
	_, err = e.scoring.SubmitAttempt(ctx, "solver-b", "1", "alpha")
	require.NoError(t, err)

	assert.True(t, domain.IsValidation(e.admin.Grant(ctx, "", 10, "r")))
	assert.True(t, domain.IsValidation(e.admin.Grant(ctx, "solver-a", 0, "r")))

	affected, err := e.admin.Unscore(ctx, "1", "solver-a")
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	overall, err := e.boards.Overall(ctx, 10)
	require.NoError(t, err)
	require.Len(t, overall.Entries, 3)
	assert.Equal(t, "solver-b", overall.Entries[0].UserID)
	assert.Equal(t, 1000, overall.Entries[0].Points)
	assert.Equal(t, "solver-a", overall.Entries[2].UserID)
	assert.Zero(t, overall.Entries[2].Points)
	assert.Zero(t, overall.Entries[2].Solves)

	// Unscored means not ratable any more.
	err = e.ratings.Rate(ctx, "solver-a", "1", 3)
	assert.ErrorIs(t, err, domain.ErrNotSolved)

	// Without a user filter every row for the problem is hit, the author's
	// bonus rows included.
	affected, err = e.admin.Unscore(ctx, "1", "")
	require.NoError(t, err)
	assert.Equal(t, 4, affected)
	overall, err = e.boards.Overall(ctx, 10)
	require.NoError(t, err)
	for _, entry := range overall.Entries {
		assert.Zero(t, entry.Points)
	}
}
