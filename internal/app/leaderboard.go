package app

import (
	"context"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// LeaderboardService computes rankings from the ledger on demand; nothing is
// cached between calls.
type LeaderboardService struct {
	problems ProblemStore
	ledger   Ledger
	ratings  RatingStore
	streaks  StreakStore
	clock    clock.Clock
}

func NewLeaderboardService(problems ProblemStore, ledger Ledger, ratings RatingStore, streaks StreakStore, clk clock.Clock) *LeaderboardService {
	return &LeaderboardService{problems: problems, ledger: ledger, ratings: ratings, streaks: streaks, clock: clk}
}

// Overall ranks every user by summed points (penalties included), ties broken
// by earliest correct solve.
func (s *LeaderboardService) Overall(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := s.ledger.Overall(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	assignRanks(entries)
	return domain.Leaderboard{Period: "overall", Entries: entries, UpdatedAt: s.clock.Now()}, nil
}

// Today ranks solvers of the currently displayed problem. Users who only hold
// penalty rows are not shown, though their penalties still count once they
// solve.
func (s *LeaderboardService) Today(ctx context.Context, limit int) (domain.Leaderboard, error) {
	active, err := s.problems.Active(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return s.ForProblem(ctx, active.Code, limit)
}

// ForProblem is the per-problem leaderboard for any code.
func (s *LeaderboardService) ForProblem(ctx context.Context, code string, limit int) (domain.Leaderboard, error) {
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries, err := s.ledger.ForProblem(ctx, p.ID, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	assignRanks(entries)
	return domain.Leaderboard{Period: p.Code, Entries: entries, UpdatedAt: s.clock.Now()}, nil
}

// Rank returns a user's 1-based overall position, or 0 if the user has no
// ledger rows at all.
func (s *LeaderboardService) Rank(ctx context.Context, userID string) (int, error) {
	entries, err := s.ledger.Overall(ctx, 0)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if e.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// Curators ranks problem authors by problems created, then average rating.
func (s *LeaderboardService) Curators(ctx context.Context, limit int) ([]domain.CuratorEntry, error) {
	return s.ratings.Curators(ctx, limit)
}

// UserStats collects one user's totals, rank and streak.
func (s *LeaderboardService) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	entries, err := s.ledger.Overall(ctx, 0)
	if err != nil {
		return domain.UserStats{}, err
	}
	stats := domain.UserStats{UserID: userID}
	for i, e := range entries {
		if e.UserID == userID {
			stats.TotalPoints = e.Points
			stats.TotalSolves = e.Solves
			stats.Rank = i + 1
			break
		}
	}
	streak, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	stats.CurrentStreak = streak.CurrentStreak
	stats.MaxStreak = streak.MaxStreak
	return stats, nil
}

func assignRanks(entries []domain.LeaderboardEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
