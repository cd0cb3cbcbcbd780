package domain

import "time"

// ReviewStatus tracks a problem through the curation pipeline.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
)

// EntryKind classifies a ledger row. Author bonuses and manual grants are
// synthetic rows, not real attempts; adjustments need no backing problem.
type EntryKind string

const (
	EntryKindAttempt     EntryKind = "attempt"
	EntryKindAuthorBonus EntryKind = "author_bonus"
	EntryKindAdjustment  EntryKind = "adjustment"
)

// Problem is a single puzzle in the daily rotation.
type Problem struct {
	ID           int64
	Code         string
	Statement    string
	Topics       string
	Difficulty   int
	Setter       string
	Source       string
	Answer       string
	AuthorID     string // empty for system-authored content
	ImageRef     string
	EditorialRef string
	ReviewStatus ReviewStatus
	OpensAt      *time.Time // nil means never released
	ClosesAt     *time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// Open reports whether the problem accepts scoring attempts at now.
// Open-ness depends only on the window, never on IsActive: a problem keeps
// accepting answers for its full 24 hours after a newer one becomes active.
func (p Problem) Open(now time.Time) bool {
	if p.OpensAt == nil || p.ClosesAt == nil {
		return false
	}
	return !now.Before(*p.OpensAt) && !now.After(*p.ClosesAt)
}

// LedgerEntry is one append-only scoring event. Points may be negative.
type LedgerEntry struct {
	ID          int64
	UserID      string
	ProblemID   int64 // zero for adjustments with no backing problem
	Kind        EntryKind
	RawAnswer   string
	IsCorrect   bool
	Points      int
	SubmittedAt time.Time
}

// Rating is a 1-5 star rating, one row per (user, problem), latest wins.
type Rating struct {
	UserID    string
	ProblemID int64
	Rating    int
	RatedAt   time.Time
}

// StreakState holds a user's consecutive-day solve streak. LastSolveDate is a
// calendar date string (YYYY-MM-DD) in the competition timezone.
type StreakState struct {
	UserID        string
	CurrentStreak int
	MaxStreak     int
	LastSolveDate string
}

// AttemptResult is returned to the submitting user after every attempt.
type AttemptResult struct {
	Code         string `json:"code"`
	Correct      bool   `json:"correct"`
	Points       int    `json:"points"`
	ProblemTotal int    `json:"problemTotal"`
	TotalSolves  int    `json:"totalSolves"`
	Streak       int    `json:"streak"`
	MaxStreak    int    `json:"maxStreak"`
}

// LeaderboardEntry is one row of the overall or per-problem leaderboard.
type LeaderboardEntry struct {
	Rank       int        `json:"rank"`
	UserID     string     `json:"userId"`
	Points     int        `json:"points"`
	Solves     int        `json:"solves"`
	FirstSolve *time.Time `json:"firstSolve,omitempty"`
}

// Leaderboard is an ordered scoreboard snapshot.
type Leaderboard struct {
	Period    string             `json:"period"` // "overall" or a problem code
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// CuratorEntry is one row of the problem-creator leaderboard.
type CuratorEntry struct {
	AuthorID        string  `json:"authorId"`
	ProblemsCreated int     `json:"problemsCreated"`
	AvgRating       float64 `json:"avgRating"`
	RatingsCount    int     `json:"ratingsCount"`
}

// UserStats summarizes one user's standing.
type UserStats struct {
	UserID        string `json:"userId"`
	TotalPoints   int    `json:"totalPoints"`
	TotalSolves   int    `json:"totalSolves"`
	Rank          int    `json:"rank"` // 0 means unranked
	CurrentStreak int    `json:"currentStreak"`
	MaxStreak     int    `json:"maxStreak"`
}

// ProblemSummary is the operator-facing listing row.
type ProblemSummary struct {
	Code         string       `json:"code"`
	Difficulty   int          `json:"difficulty"`
	ReviewStatus ReviewStatus `json:"reviewStatus"`
	IsActive     bool         `json:"isActive"`
}
