package app

import (
	"context"
	"time"

	"daily-puzzle-service/internal/domain"
)

// ProblemStore is the durable problem repository. The store is the single
// source of truth; nothing above it caches problem state across calls except
// the explicit ProblemReader cache, which is invalidated on every mutation.
type ProblemStore interface {
	Insert(ctx context.Context, p *domain.Problem) error
	ByCode(ctx context.Context, code string) (domain.Problem, error)
	ByID(ctx context.Context, id int64) (domain.Problem, error)
	// Active returns the problem currently flagged for display,
	// domain.ErrNotFound if none.
	Active(ctx context.Context) (domain.Problem, error)
	// NextReleasable returns the oldest approved problem that has never been
	// opened, domain.ErrExhausted if none remains.
	NextReleasable(ctx context.Context) (domain.Problem, error)
	Approve(ctx context.Context, id int64) error
	// RejectAndCompact deletes the problem and renumbers every remaining
	// numeric code greater than the deleted one, atomically.
	RejectAndCompact(ctx context.Context, id int64) error
	// Activate clears the active flag everywhere, then opens the target
	// window. The update is conditional on the target still being approved
	// and unopened; a lost race returns domain.ErrConflict.
	Activate(ctx context.Context, id int64, opensAt, closesAt time.Time) error
	List(ctx context.Context) ([]domain.ProblemSummary, error)
	CountRecentByAuthor(ctx context.Context, authorID string, since time.Time) (int, error)
}

// ProblemReader is the read path used by the scoring engine; satisfied by the
// store directly or by a caching layer in front of it.
type ProblemReader interface {
	ByCode(ctx context.Context, code string) (domain.Problem, error)
}

// ProblemCache invalidates cached problem lookups after lifecycle mutations.
// InvalidateAll exists because code compaction shifts codes other than the
// one being rejected.
type ProblemCache interface {
	ProblemReader
	Invalidate(ctx context.Context, code string)
	InvalidateAll(ctx context.Context)
}

// Ledger is the append-only submission store plus its aggregate query surface.
type Ledger interface {
	Append(ctx context.Context, e *domain.LedgerEntry) error
	HasCorrect(ctx context.Context, userID string, problemID int64) (bool, error)
	// ProblemTotal sums all points for (user, problem), penalties included.
	ProblemTotal(ctx context.Context, userID string, problemID int64) (int, error)
	DistinctSolves(ctx context.Context, userID string) (int, error)
	// Overall aggregates every ledger row by user: summed points, distinct
	// correct problems, earliest correct timestamp. Ordered by points
	// descending, earliest first-solve ascending. limit <= 0 returns all rows.
	Overall(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	// ForProblem is the same aggregation restricted to one problem, including
	// only users with at least one correct row for it.
	ForProblem(ctx context.Context, problemID int64, limit int) ([]domain.LeaderboardEntry, error)
	// Unscore zeroes is_correct and points for a problem, optionally for a
	// single user (userID empty means everyone). Returns rows affected.
	Unscore(ctx context.Context, problemID int64, userID string) (int, error)
}

// RatingStore keeps one rating per (user, problem); later ratings overwrite.
type RatingStore interface {
	Upsert(ctx context.Context, r domain.Rating) error
	// Curators groups problems by author: creation count and rating average,
	// ordered by count descending then average descending.
	Curators(ctx context.Context, limit int) ([]domain.CuratorEntry, error)
}

// StreakStore persists per-user streak state. Get returns a zero-value state
// for unknown users.
type StreakStore interface {
	Get(ctx context.Context, userID string) (domain.StreakState, error)
	Put(ctx context.Context, s domain.StreakState) error
}

// Notifier is the outbound boundary to the excluded chat transport. Calls are
// fire-and-forget; delivery failures are the collaborator's concern.
type Notifier interface {
	ProblemOpened(ctx context.Context, p domain.Problem)
	// ProblemClosed reveals the outgoing problem's answer and editorial.
	ProblemClosed(ctx context.Context, p domain.Problem)
	Exhausted(ctx context.Context)
	ReviewRequested(ctx context.Context, p domain.Problem)
	ReviewDecided(ctx context.Context, p domain.Problem, approved bool, reason string)
}
