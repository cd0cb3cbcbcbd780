package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// AdminService holds the moderation operations: manual point grants and bulk
// unscoring. Authorization is the caller's responsibility.
type AdminService struct {
	problems ProblemStore
	ledger   Ledger
	clock    clock.Clock
	log      *zap.Logger
}

func NewAdminService(problems ProblemStore, ledger Ledger, clk clock.Clock, log *zap.Logger) *AdminService {
	return &AdminService{problems: problems, ledger: ledger, clock: clk, log: log}
}

// Grant appends an adjustment row crediting (or debiting) a user, bypassing
// the scoring engine. Adjustments carry no problem reference.
func (s *AdminService) Grant(ctx context.Context, userID string, points int, reason string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Validationf("userId", "must not be empty")
	}
	if points == 0 {
		return domain.Validationf("points", "must not be zero")
	}
	entry := domain.LedgerEntry{
		UserID:      userID,
		Kind:        domain.EntryKindAdjustment,
		RawAnswer:   reason,
		Points:      points,
		SubmittedAt: s.clock.Now(),
	}
	if err := s.ledger.Append(ctx, &entry); err != nil {
		return err
	}
	s.log.Info("manual grant recorded",
		zap.String("user", userID),
		zap.Int("points", points),
		zap.String("reason", reason))
	return nil
}

// Unscore zeroes correctness and points for a problem's submissions,
// optionally for a single user. Returns the number of rows affected.
func (s *AdminService) Unscore(ctx context.Context, code, userID string) (int, error) {
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	affected, err := s.ledger.Unscore(ctx, p.ID, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info("submissions unscored",
		zap.String("code", code),
		zap.String("user", userID),
		zap.Int("rows", affected))
	return affected, nil
}
