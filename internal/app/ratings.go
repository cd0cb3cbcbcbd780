package app

import (
	"context"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// RatingService records 1-5 star ratings. Only users who solved the problem
// may rate it; rating again overwrites the earlier value.
type RatingService struct {
	problems ProblemStore
	ledger   Ledger
	ratings  RatingStore
	clock    clock.Clock
}

func NewRatingService(problems ProblemStore, ledger Ledger, ratings RatingStore, clk clock.Clock) *RatingService {
	return &RatingService{problems: problems, ledger: ledger, ratings: ratings, clock: clk}
}

func (s *RatingService) Rate(ctx context.Context, userID, code string, rating int) error {
	if rating < 1 || rating > 5 {
		return domain.Validationf("rating", "must be between 1 and 5")
	}
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return err
	}
	solved, err := s.ledger.HasCorrect(ctx, userID, p.ID)
	if err != nil {
		return err
	}
	if !solved {
		return domain.ErrNotSolved
	}
	return s.ratings.Upsert(ctx, domain.Rating{
		UserID:    userID,
		ProblemID: p.ID,
		Rating:    rating,
		RatedAt:   s.clock.Now(),
	})
}
