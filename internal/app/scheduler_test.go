package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-puzzle-service/internal/app"
	"daily-puzzle-service/internal/domain"
)

func TestActivateOldestApprovedFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.submitProblem(t, "1", "a", "author-1")
	e.advance(time.Minute)
	e.submitProblem(t, "2", "b", "author-2")

	p, err := e.sched.Activate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "1", p.Code)

	p, err = e.sched.Activate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2", p.Code)
}

func TestActivateSkipsPendingProblems(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.review.Submit(ctx, app.CreateProblemInput{
		Code: "1", Statement: "s", Answer: "a", Difficulty: 2, AuthorID: "author-1",
	})
	require.NoError(t, err)
	e.advance(25 * time.Hour)
	e.submitProblem(t, "2", "b", "author-2")

	p, err := e.sched.Activate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2", p.Code)
}

func TestActivateExhaustedQueue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.sched.Activate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrExhausted)
	assert.Equal(t, 1, e.notifier.exhausted)
}

func TestActivateSingleCurrentProblem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.openProblem(t, "1", "a", "author-1")
	e.advance(time.Hour)
	e.submitProblem(t, "2", "b", "author-2")

	_, err := e.sched.Activate(ctx, "")
	require.NoError(t, err)

	active, err := e.store.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", active.Code)
	assert.Equal(t, []string{"1"}, e.notifier.closed)
	assert.Equal(t, []string{"1", "2"}, e.notifier.opened)
}

// Switching the current problem does not close the previous window early:
// submissions against the outgoing problem keep scoring until its own
// closesAt passes.
func TestActivationLeavesPreviousWindowOpen(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	first := e.openProblem(t, "1", "alpha", "author-1")
	e.advance(time.Hour)
	e.submitProblem(t, "2", "beta", "author-2")
	_, err := e.sched.Activate(ctx, "")
	require.NoError(t, err)

	res, err := e.scoring.SubmitAttempt(ctx, "solver-1", "1", "alpha")
	require.NoError(t, err)
	assert.True(t, res.Correct)

	// Twenty-four hours after its own opening the first window is shut.
	e.advance(24 * time.Hour)
	_, err = e.scoring.SubmitAttempt(ctx, "solver-2", first.Code, "alpha")
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestManualActivateByCode(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.submitProblem(t, "1", "a", "author-1")
	e.advance(25 * time.Hour)
	e.submitProblem(t, "2", "b", "author-2")

	p, err := e.sched.Activate(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "2", p.Code)
	require.NotNil(t, p.OpensAt)
	require.NotNil(t, p.ClosesAt)
	assert.Equal(t, 24*time.Hour, p.ClosesAt.Sub(*p.OpensAt))
}

func TestManualActivateRejectsUnreleasable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	// Pending problem.
	_, err := e.review.Submit(ctx, app.CreateProblemInput{
		Code: "1", Statement: "s", Answer: "a", Difficulty: 2, AuthorID: "author-1",
	})
	require.NoError(t, err)
	_, err = e.sched.Activate(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotReleasable)

	// Already-opened problem.
	e.advance(25 * time.Hour)
	e.openProblem(t, "2", "b", "author-2")
	_, err = e.sched.Activate(ctx, "2")
	assert.ErrorIs(t, err, domain.ErrNotReleasable)

	// Unknown code.
	_, err = e.sched.Activate(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
