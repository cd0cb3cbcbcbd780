package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"daily-puzzle-service/internal/domain"
)

// Store is the durable Postgres implementation of the problem repository,
// submission ledger, rating store and streak store. Mutations go through bun;
// the aggregate read queries run on a pgx pool (see queries.go).
type Store struct {
	db   *bun.DB
	pool *pgxpool.Pool
}

func NewStore(db *bun.DB, pool *pgxpool.Pool) *Store {
	return &Store{db: db, pool: pool}
}

type problemRow struct {
	bun.BaseModel `bun:"table:problems,alias:p"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Code         string     `bun:"code,notnull"`
	Statement    string     `bun:"statement,notnull"`
	Topics       string     `bun:"topics"`
	Difficulty   int        `bun:"difficulty"`
	Setter       string     `bun:"setter"`
	Source       string     `bun:"source"`
	Answer       string     `bun:"answer,notnull"`
	AuthorID     string     `bun:"author_id"`
	ImageRef     string     `bun:"image_ref"`
	EditorialRef string     `bun:"editorial_ref"`
	ReviewStatus string     `bun:"review_status,notnull"`
	OpensAt      *time.Time `bun:"opens_at"`
	ClosesAt     *time.Time `bun:"closes_at"`
	IsActive     bool       `bun:"is_active"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      string    `bun:"user_id,notnull"`
	ProblemID   int64     `bun:"problem_id,nullzero"`
	EntryKind   string    `bun:"entry_kind,notnull"`
	RawAnswer   string    `bun:"raw_answer"`
	IsCorrect   bool      `bun:"is_correct"`
	Points      int       `bun:"points"`
	SubmittedAt time.Time `bun:"submitted_at,nullzero,notnull,default:current_timestamp"`
}

type ratingRow struct {
	bun.BaseModel `bun:"table:problem_ratings,alias:r"`

	UserID    string    `bun:"user_id,pk"`
	ProblemID int64     `bun:"problem_id,pk"`
	Rating    int       `bun:"rating,notnull"`
	RatedAt   time.Time `bun:"rated_at,nullzero,notnull,default:current_timestamp"`
}

type streakRow struct {
	bun.BaseModel `bun:"table:user_streaks,alias:us"`

	UserID        string `bun:"user_id,pk"`
	CurrentStreak int    `bun:"current_streak"`
	MaxStreak     int    `bun:"max_streak"`
	LastSolveDate string `bun:"last_solve_date"`
}

// --- ProblemStore ---

func (s *Store) Insert(ctx context.Context, p *domain.Problem) error {
	row := toProblemRow(*p)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("insert problem: %w", err)
	}
	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) ByCode(ctx context.Context, code string) (domain.Problem, error) {
	var row problemRow
	err := s.db.NewSelect().Model(&row).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Problem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Problem{}, fmt.Errorf("problem by code: %w", err)
	}
	return fromProblemRow(row), nil
}

func (s *Store) ByID(ctx context.Context, id int64) (domain.Problem, error) {
	var row problemRow
	err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Problem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Problem{}, fmt.Errorf("problem by id: %w", err)
	}
	return fromProblemRow(row), nil
}

func (s *Store) Active(ctx context.Context) (domain.Problem, error) {
	var row problemRow
	err := s.db.NewSelect().Model(&row).Where("is_active").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Problem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Problem{}, fmt.Errorf("active problem: %w", err)
	}
	return fromProblemRow(row), nil
}

func (s *Store) NextReleasable(ctx context.Context) (domain.Problem, error) {
	var row problemRow
	err := s.db.NewSelect().Model(&row).
		Where("opens_at IS NULL").
		Where("review_status = ?", string(domain.ReviewApproved)).
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Problem{}, domain.ErrExhausted
	}
	if err != nil {
		return domain.Problem{}, fmt.Errorf("next releasable: %w", err)
	}
	return fromProblemRow(row), nil
}

func (s *Store) Approve(ctx context.Context, id int64) error {
	res, err := s.db.NewUpdate().Model((*problemRow)(nil)).
		Set("review_status = ?", string(domain.ReviewApproved)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("approve problem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RejectAndCompact deletes the problem and decrements every numeric code
// above it, ascending, inside one transaction. Ascending order means each
// update lands on a code slot freed by the previous one, so the unique
// constraint never sees a transient duplicate. Cost is bounded by the number
// of problems with a higher code.
func (s *Store) RejectAndCompact(ctx context.Context, id int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row problemRow
		err := tx.NewSelect().Model(&row).Where("p.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select for reject: %w", err)
		}

		if _, err := tx.NewDelete().Model((*problemRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete problem: %w", err)
		}

		rejected, err := strconv.Atoi(row.Code)
		if err != nil || rejected <= 0 {
			// Non-numeric codes are exempt from compaction.
			return nil
		}

		var higher []problemRow
		err = tx.NewSelect().Model(&higher).
			Column("id", "code").
			Where("code ~ '^[0-9]+$'").
			Where("code::bigint > ?", rejected).
			OrderExpr("code::bigint ASC").
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("select codes to shift: %w", err)
		}
		// Rows arrive ordered by code ascending, so each update lands on a
		// slot freed by the previous one.
		for _, h := range higher {
			n, _ := strconv.Atoi(h.Code)
			if _, err := tx.NewUpdate().Model((*problemRow)(nil)).
				Set("code = ?", strconv.Itoa(n-1)).
				Where("id = ?", h.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("shift code %s: %w", h.Code, err)
			}
		}
		return nil
	})
}

// Activate clears the display flag everywhere, then opens the target's
// window. The second update is conditional on the target still being
// approved and unopened; zero rows affected means a lost race.
func (s *Store) Activate(ctx context.Context, id int64, opensAt, closesAt time.Time) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model((*problemRow)(nil)).
			Set("is_active = FALSE").
			Where("is_active").
			Exec(ctx); err != nil {
			return fmt.Errorf("deactivate current: %w", err)
		}
		res, err := tx.NewUpdate().Model((*problemRow)(nil)).
			Set("is_active = TRUE").
			Set("opens_at = ?", opensAt).
			Set("closes_at = ?", closesAt).
			Where("id = ?", id).
			Where("opens_at IS NULL").
			Where("review_status = ?", string(domain.ReviewApproved)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("activate problem: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrConflict
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context) ([]domain.ProblemSummary, error) {
	var rows []problemRow
	err := s.db.NewSelect().Model(&rows).
		Column("code", "difficulty", "review_status", "is_active").
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	out := make([]domain.ProblemSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ProblemSummary{
			Code:         r.Code,
			Difficulty:   r.Difficulty,
			ReviewStatus: domain.ReviewStatus(r.ReviewStatus),
			IsActive:     r.IsActive,
		})
	}
	return out, nil
}

func (s *Store) CountRecentByAuthor(ctx context.Context, authorID string, since time.Time) (int, error) {
	count, err := s.db.NewSelect().Model((*problemRow)(nil)).
		Where("author_id = ?", authorID).
		Where("created_at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recent by author: %w", err)
	}
	return count, nil
}

// --- Ledger mutations (reads live in queries.go) ---

func (s *Store) Append(ctx context.Context, e *domain.LedgerEntry) error {
	row := submissionRow{
		UserID:      e.UserID,
		ProblemID:   e.ProblemID,
		EntryKind:   string(e.Kind),
		RawAnswer:   e.RawAnswer,
		IsCorrect:   e.IsCorrect,
		Points:      e.Points,
		SubmittedAt: e.SubmittedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	e.ID = row.ID
	return nil
}

func (s *Store) Unscore(ctx context.Context, problemID int64, userID string) (int, error) {
	q := s.db.NewUpdate().Model((*submissionRow)(nil)).
		Set("is_correct = FALSE").
		Set("points = 0").
		Where("problem_id = ?", problemID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("unscore submissions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- RatingStore ---

func (s *Store) Upsert(ctx context.Context, r domain.Rating) error {
	row := ratingRow{
		UserID:    r.UserID,
		ProblemID: r.ProblemID,
		Rating:    r.Rating,
		RatedAt:   r.RatedAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (user_id, problem_id) DO UPDATE").
		Set("rating = EXCLUDED.rating").
		Set("rated_at = EXCLUDED.rated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// --- StreakStore ---

func (s *Store) Get(ctx context.Context, userID string) (domain.StreakState, error) {
	var row streakRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StreakState{UserID: userID}, nil
	}
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("get streak: %w", err)
	}
	return domain.StreakState{
		UserID:        row.UserID,
		CurrentStreak: row.CurrentStreak,
		MaxStreak:     row.MaxStreak,
		LastSolveDate: row.LastSolveDate,
	}, nil
}

func (s *Store) Put(ctx context.Context, state domain.StreakState) error {
	row := streakRow{
		UserID:        state.UserID,
		CurrentStreak: state.CurrentStreak,
		MaxStreak:     state.MaxStreak,
		LastSolveDate: state.LastSolveDate,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("current_streak = EXCLUDED.current_streak").
		Set("max_streak = EXCLUDED.max_streak").
		Set("last_solve_date = EXCLUDED.last_solve_date").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

func toProblemRow(p domain.Problem) problemRow {
	return problemRow{
		ID:           p.ID,
		Code:         p.Code,
		Statement:    p.Statement,
		Topics:       p.Topics,
		Difficulty:   p.Difficulty,
		Setter:       p.Setter,
		Source:       p.Source,
		Answer:       p.Answer,
		AuthorID:     p.AuthorID,
		ImageRef:     p.ImageRef,
		EditorialRef: p.EditorialRef,
		ReviewStatus: string(p.ReviewStatus),
		OpensAt:      p.OpensAt,
		ClosesAt:     p.ClosesAt,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
}

func fromProblemRow(r problemRow) domain.Problem {
	return domain.Problem{
		ID:           r.ID,
		Code:         r.Code,
		Statement:    r.Statement,
		Topics:       r.Topics,
		Difficulty:   r.Difficulty,
		Setter:       r.Setter,
		Source:       r.Source,
		Answer:       r.Answer,
		AuthorID:     r.AuthorID,
		ImageRef:     r.ImageRef,
		EditorialRef: r.EditorialRef,
		ReviewStatus: domain.ReviewStatus(r.ReviewStatus),
		OpensAt:      r.OpensAt,
		ClosesAt:     r.ClosesAt,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
