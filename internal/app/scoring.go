package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// ScoringEngine validates attempt eligibility, computes decayed points, and
// appends scoring events to the ledger.
type ScoringEngine struct {
	problems ProblemReader
	ledger   Ledger
	streaks  *StreakTracker
	rules    Rules
	clock    clock.Clock
	log      *zap.Logger

	// gate serializes the solved-check plus ledger append per
	// (user, problem) so two racing correct submissions cannot both land.
	// Distinct pairs proceed in parallel.
	gate *keyedMutex
}

func NewScoringEngine(problems ProblemReader, ledger Ledger, streaks *StreakTracker, rules Rules, clk clock.Clock, log *zap.Logger) *ScoringEngine {
	return &ScoringEngine{
		problems: problems,
		ledger:   ledger,
		streaks:  streaks,
		rules:    rules,
		clock:    clk,
		log:      log,
		gate:     newKeyedMutex(),
	}
}

// SubmitAttempt scores one answer. Eligibility checks run in order: unknown
// code, self-submission, closed window, already solved. Wrong attempts cost a
// fixed penalty and may be repeated; the first correct attempt locks the
// problem for the user and credits the author a bonus.
func (e *ScoringEngine) SubmitAttempt(ctx context.Context, userID, code, rawAnswer string) (domain.AttemptResult, error) {
	p, err := e.problems.ByCode(ctx, code)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if p.AuthorID != "" && p.AuthorID == userID {
		return domain.AttemptResult{}, domain.ErrSelfSubmission
	}

	now := e.clock.Now()
	if !p.Open(now) {
		return domain.AttemptResult{}, domain.ErrWindowClosed
	}

	unlock := e.gate.Lock(attemptKey(userID, p.ID))
	defer unlock()

	solved, err := e.ledger.HasCorrect(ctx, userID, p.ID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if solved {
		return domain.AttemptResult{}, domain.ErrAlreadySolved
	}

	correct := answersMatch(rawAnswer, p.Answer)
	points := -e.rules.WrongPenalty
	if correct {
		points = e.rules.Score(*p.OpensAt, now)
	}

	entry := domain.LedgerEntry{
		UserID:      userID,
		ProblemID:   p.ID,
		Kind:        domain.EntryKindAttempt,
		RawAnswer:   rawAnswer,
		IsCorrect:   correct,
		Points:      points,
		SubmittedAt: now,
	}
	if err := e.ledger.Append(ctx, &entry); err != nil {
		return domain.AttemptResult{}, err
	}

	if correct && p.AuthorID != "" {
		bonus := domain.LedgerEntry{
			UserID:      p.AuthorID,
			ProblemID:   p.ID,
			Kind:        domain.EntryKindAuthorBonus,
			IsCorrect:   true,
			Points:      e.rules.AuthorBonus,
			SubmittedAt: now,
		}
		if err := e.ledger.Append(ctx, &bonus); err != nil {
			// The solve itself is recorded; report the bonus failure upward.
			return domain.AttemptResult{}, fmt.Errorf("append author bonus: %w", err)
		}
	}

	total, err := e.ledger.ProblemTotal(ctx, userID, p.ID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	result := domain.AttemptResult{
		Code:         p.Code,
		Correct:      correct,
		Points:       points,
		ProblemTotal: total,
	}
	if correct {
		streak, err := e.streaks.RecordSolve(ctx, userID)
		if err != nil {
			return domain.AttemptResult{}, err
		}
		result.Streak = streak.CurrentStreak
		result.MaxStreak = streak.MaxStreak

		solves, err := e.ledger.DistinctSolves(ctx, userID)
		if err != nil {
			return domain.AttemptResult{}, err
		}
		result.TotalSolves = solves

		e.log.Info("problem solved",
			zap.String("user", userID),
			zap.String("code", p.Code),
			zap.Int("points", points))
	}
	return result, nil
}

func attemptKey(userID string, problemID int64) string {
	return fmt.Sprintf("%s/%d", userID, problemID)
}

// answersMatch compares case-insensitively with surrounding whitespace
// trimmed.
func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
