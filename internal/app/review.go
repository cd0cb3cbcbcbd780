package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// CreateProblemInput carries the author-facing fields of a new problem.
type CreateProblemInput struct {
	Code         string
	Statement    string
	Topics       string
	Difficulty   int
	Setter       string
	Source       string
	Answer       string
	AuthorID     string
	ImageRef     string
	EditorialRef string
}

// ReviewService governs a problem from submission through approval or
// rejection. Rejection deletes the row and compacts the numeric code space.
type ReviewService struct {
	problems ProblemStore
	cache    ProblemCache
	clock    clock.Clock
	notifier Notifier
	log      *zap.Logger
}

func NewReviewService(problems ProblemStore, cache ProblemCache, clk clock.Clock, notifier Notifier, log *zap.Logger) *ReviewService {
	return &ReviewService{problems: problems, cache: cache, clock: clk, notifier: notifier, log: log}
}

// Submit validates and records a new problem as pending review. Authors are
// limited to one problem per rolling 24 hours.
func (s *ReviewService) Submit(ctx context.Context, in CreateProblemInput) (domain.Problem, error) {
	if strings.TrimSpace(in.Code) == "" {
		return domain.Problem{}, domain.Validationf("code", "must not be empty")
	}
	if strings.TrimSpace(in.Statement) == "" {
		return domain.Problem{}, domain.Validationf("statement", "must not be empty")
	}
	if strings.TrimSpace(in.Answer) == "" {
		return domain.Problem{}, domain.Validationf("answer", "must not be empty")
	}
	if in.Difficulty < 1 || in.Difficulty > 5 {
		return domain.Problem{}, domain.Validationf("difficulty", "must be between 1 and 5")
	}

	if in.AuthorID != "" {
		since := s.clock.Now().Add(-24 * time.Hour)
		recent, err := s.problems.CountRecentByAuthor(ctx, in.AuthorID, since)
		if err != nil {
			return domain.Problem{}, err
		}
		if recent >= 1 {
			return domain.Problem{}, domain.ErrCreateRateLimited
		}
	}

	p := domain.Problem{
		Code:         strings.TrimSpace(in.Code),
		Statement:    in.Statement,
		Topics:       in.Topics,
		Difficulty:   in.Difficulty,
		Setter:       in.Setter,
		Source:       in.Source,
		Answer:       strings.TrimSpace(in.Answer),
		AuthorID:     in.AuthorID,
		ImageRef:     in.ImageRef,
		EditorialRef: in.EditorialRef,
		ReviewStatus: domain.ReviewPending,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.problems.Insert(ctx, &p); err != nil {
		return domain.Problem{}, err
	}

	s.log.Info("problem submitted for review",
		zap.String("code", p.Code),
		zap.String("author", p.AuthorID))
	s.notifier.ReviewRequested(ctx, p)
	return p, nil
}

// Approve marks a problem releasable. Approving twice is a no-op.
func (s *ReviewService) Approve(ctx context.Context, code string) error {
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return err
	}
	if p.ReviewStatus == domain.ReviewApproved {
		return nil
	}
	if err := s.problems.Approve(ctx, p.ID); err != nil {
		return err
	}
	p.ReviewStatus = domain.ReviewApproved
	s.cache.Invalidate(ctx, p.Code)
	s.notifier.ReviewDecided(ctx, p, true, "")
	return nil
}

// Reject deletes the problem and renumbers the surviving numeric codes so
// they stay dense. The shift happens inside a single store transaction; a
// partial renumbering would break code uniqueness, so compaction failures
// surface as-is rather than being retried.
func (s *ReviewService) Reject(ctx context.Context, code, reason string) error {
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.problems.RejectAndCompact(ctx, p.ID); err != nil {
		s.log.Error("code compaction failed",
			zap.String("code", p.Code),
			zap.Error(err))
		return err
	}
	// Compaction may have renumbered any code above the rejected one.
	s.cache.InvalidateAll(ctx)
	s.log.Info("problem rejected",
		zap.String("code", p.Code),
		zap.String("reason", reason))
	s.notifier.ReviewDecided(ctx, p, false, reason)
	return nil
}

// List returns all problems, newest first, for operator views.
func (s *ReviewService) List(ctx context.Context) ([]domain.ProblemSummary, error) {
	return s.problems.List(ctx)
}
