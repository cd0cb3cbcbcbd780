package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"daily-puzzle-service/internal/clock"
	"daily-puzzle-service/internal/domain"
)

// Scheduler opens the next problem on a fixed daily trigger or on manual
// command. Activation flips which problem is displayed as current; it never
// closes the previous problem's window early.
type Scheduler struct {
	problems ProblemStore
	cache    ProblemCache
	rules    Rules
	clock    clock.Clock
	notifier Notifier
	log      *zap.Logger

	mu   sync.Mutex // serializes manual and scheduled activation
	cron *cron.Cron
}

func NewScheduler(problems ProblemStore, cache ProblemCache, rules Rules, clk clock.Clock, notifier Notifier, log *zap.Logger, loc *time.Location) *Scheduler {
	return &Scheduler{
		problems: problems,
		cache:    cache,
		rules:    rules,
		clock:    clk,
		notifier: notifier,
		log:      log,
		cron:     cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the daily trigger. A failed run logs and waits for the next
// natural trigger rather than retrying immediately.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Activate(ctx, ""); err != nil && !errors.Is(err, domain.ErrExhausted) {
			s.log.Error("daily activation failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("daily activation scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the daily trigger.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Activate opens the problem with the given code, or with an empty code the
// oldest approved problem that has never been opened. When the queue is
// exhausted the notification collaborator is told instead of failing silently.
func (s *Scheduler) Activate(ctx context.Context, code string) (domain.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.selectTarget(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrExhausted) {
			s.log.Warn("problem queue exhausted")
			s.notifier.Exhausted(ctx)
		}
		return domain.Problem{}, err
	}

	// Reveal the outgoing problem's answer and editorial before switching.
	if outgoing, err := s.problems.Active(ctx); err == nil && outgoing.ID != target.ID {
		s.notifier.ProblemClosed(ctx, outgoing)
	}

	now := s.clock.Now()
	err = s.problems.Activate(ctx, target.ID, now, now.Add(s.rules.Window))
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race; re-read and try once more before surfacing.
		target, err = s.selectTarget(ctx, code)
		if err != nil {
			return domain.Problem{}, err
		}
		now = s.clock.Now()
		err = s.problems.Activate(ctx, target.ID, now, now.Add(s.rules.Window))
	}
	if err != nil {
		return domain.Problem{}, err
	}

	s.cache.Invalidate(ctx, target.Code)
	activated, err := s.problems.ByID(ctx, target.ID)
	if err != nil {
		return domain.Problem{}, err
	}

	s.log.Info("problem activated",
		zap.String("code", activated.Code),
		zap.Timep("closesAt", activated.ClosesAt))
	s.notifier.ProblemOpened(ctx, activated)
	return activated, nil
}

func (s *Scheduler) selectTarget(ctx context.Context, code string) (domain.Problem, error) {
	if code == "" {
		return s.problems.NextReleasable(ctx)
	}
	p, err := s.problems.ByCode(ctx, code)
	if err != nil {
		return domain.Problem{}, err
	}
	if p.ReviewStatus != domain.ReviewApproved || p.OpensAt != nil {
		return domain.Problem{}, domain.ErrNotReleasable
	}
	return p, nil
}
