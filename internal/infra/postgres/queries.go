package postgres

import (
	"context"
	"fmt"
	"time"

	"daily-puzzle-service/internal/domain"
)

// Aggregate read queries for the ledger and the curator board. These run on
// the pgx pool rather than through bun; they are pure SQL aggregation with no
// model mapping to speak of.

func (s *Store) HasCorrect(ctx context.Context, userID string, problemID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM submissions
		   WHERE user_id = $1 AND problem_id = $2 AND is_correct
		 )`, userID, problemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has correct: %w", err)
	}
	return exists, nil
}

func (s *Store) ProblemTotal(ctx context.Context, userID string, problemID int64) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM submissions
		 WHERE user_id = $1 AND problem_id = $2`, userID, problemID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("problem total: %w", err)
	}
	return total, nil
}

func (s *Store) DistinctSolves(ctx context.Context, userID string) (int, error) {
	var solves int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT problem_id) FROM submissions
		 WHERE user_id = $1 AND is_correct`, userID).Scan(&solves)
	if err != nil {
		return 0, fmt.Errorf("distinct solves: %w", err)
	}
	return solves, nil
}

func (s *Store) Overall(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT user_id,
		       SUM(points) AS total_points,
		       COUNT(DISTINCT CASE WHEN is_correct THEN problem_id END) AS solves,
		       MIN(CASE WHEN is_correct THEN submitted_at END) AS first_solve
		FROM submissions
		GROUP BY user_id
		ORDER BY total_points DESC, first_solve ASC NULLS LAST, user_id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("overall leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var firstSolve *time.Time
		if err := rows.Scan(&e.UserID, &e.Points, &e.Solves, &firstSolve); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.FirstSolve = firstSolve
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ForProblem(ctx context.Context, problemID int64, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT user_id,
		       SUM(points) AS total_points,
		       COUNT(DISTINCT CASE WHEN is_correct THEN problem_id END) AS solves,
		       MIN(CASE WHEN is_correct THEN submitted_at END) AS first_correct
		FROM submissions
		WHERE problem_id = $1
		GROUP BY user_id
		HAVING bool_or(is_correct)
		ORDER BY total_points DESC, first_correct ASC, user_id ASC`
	args := []interface{}{problemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("problem leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var firstSolve *time.Time
		if err := rows.Scan(&e.UserID, &e.Points, &e.Solves, &firstSolve); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.FirstSolve = firstSolve
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Curators(ctx context.Context, limit int) ([]domain.CuratorEntry, error) {
	query := `
		SELECT p.author_id,
		       COUNT(DISTINCT p.id) AS problems_created,
		       COALESCE(AVG(r.rating), 0) AS avg_rating,
		       COUNT(r.user_id) AS ratings_count
		FROM problems p
		LEFT JOIN problem_ratings r ON r.problem_id = p.id
		WHERE p.author_id <> ''
		GROUP BY p.author_id
		ORDER BY problems_created DESC, avg_rating DESC, p.author_id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("curator leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.CuratorEntry
	for rows.Next() {
		var e domain.CuratorEntry
		if err := rows.Scan(&e.AuthorID, &e.ProblemsCreated, &e.AvgRating, &e.RatingsCount); err != nil {
			return nil, fmt.Errorf("scan curator row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
