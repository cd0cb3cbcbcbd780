package app

import (
	"context"
	"time"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// StreakTracker maintains per-user consecutive-day solve streaks keyed to
// calendar dates in the competition timezone. RecordSolve must be called once
// per accepted correct attempt, never per message.
type StreakTracker struct {
	store StreakStore
	clock clock.Clock
	locks *keyedMutex
}

func NewStreakTracker(store StreakStore, clk clock.Clock) *StreakTracker {
	return &StreakTracker{store: store, clock: clk, locks: newKeyedMutex()}
}

// RecordSolve advances the user's streak for today. Solving twice on the same
// date leaves the streak unchanged; a gap day resets it to one.
func (t *StreakTracker) RecordSolve(ctx context.Context, userID string) (domain.StreakState, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	state, err := t.store.Get(ctx, userID)
	if err != nil {
		return domain.StreakState{}, err
	}
	state.UserID = userID

	today := t.clock.Today()
	if state.LastSolveDate == today {
		return state, nil
	}

	if state.LastSolveDate == previousDate(today) {
		state.CurrentStreak++
	} else {
		state.CurrentStreak = 1
	}
	if state.CurrentStreak > state.MaxStreak {
		state.MaxStreak = state.CurrentStreak
	}
	state.LastSolveDate = today

	if err := t.store.Put(ctx, state); err != nil {
		return domain.StreakState{}, err
	}
	return state, nil
}

// Current returns the stored streak state without advancing it.
func (t *StreakTracker) Current(ctx context.Context, userID string) (domain.StreakState, error) {
	return t.store.Get(ctx, userID)
}

func previousDate(date string) string {
	d, err := time.Parse(clock.DateLayout, date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(clock.DateLayout)
}
