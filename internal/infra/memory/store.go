package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"daily-puzzle-service/internal/domain"
)

// Store is an in-memory implementation of every durable port. It backs unit
// tests and redis/postgres-less deployments.
type Store struct {
	mu            sync.RWMutex
	nextProblemID int64
	nextEntryID   int64
	problems      map[int64]*domain.Problem
	entries       []domain.LedgerEntry
	ratings       map[ratingKey]domain.Rating
	streaks       map[string]domain.StreakState
}

type ratingKey struct {
	userID    string
	problemID int64
}

func NewStore() *Store {
	return &Store{
		problems: make(map[int64]*domain.Problem),
		ratings:  make(map[ratingKey]domain.Rating),
		streaks:  make(map[string]domain.StreakState),
	}
}

// --- ProblemStore ---

func (s *Store) Insert(_ context.Context, p *domain.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.problems {
		if existing.Code == p.Code {
			return domain.ErrDuplicateCode
		}
	}
	s.nextProblemID++
	p.ID = s.nextProblemID
	cp := *p
	s.problems[p.ID] = &cp
	return nil
}

func (s *Store) ByCode(_ context.Context, code string) (domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.problems {
		if p.Code == code {
			return *p, nil
		}
	}
	return domain.Problem{}, domain.ErrNotFound
}

func (s *Store) ByID(_ context.Context, id int64) (domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.problems[id]; ok {
		return *p, nil
	}
	return domain.Problem{}, domain.ErrNotFound
}

func (s *Store) Active(_ context.Context) (domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.problems {
		if p.IsActive {
			return *p, nil
		}
	}
	return domain.Problem{}, domain.ErrNotFound
}

func (s *Store) NextReleasable(_ context.Context) (domain.Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *domain.Problem
	for _, p := range s.problems {
		if p.ReviewStatus != domain.ReviewApproved || p.OpensAt != nil {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if oldest == nil {
		return domain.Problem{}, domain.ErrExhausted
	}
	return *oldest, nil
}

func (s *Store) Approve(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ReviewStatus = domain.ReviewApproved
	return nil
}

// RejectAndCompact deletes the problem and shifts numeric codes above it down
// by one, in ascending order so no two problems ever share a code.
func (s *Store) RejectAndCompact(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return domain.ErrNotFound
	}
	rejected, numeric := numericCode(p.Code)
	delete(s.problems, id)
	if !numeric {
		return nil
	}

	type shift struct {
		p    *domain.Problem
		code int
	}
	var shifts []shift
	for _, other := range s.problems {
		if c, ok := numericCode(other.Code); ok && c > rejected {
			shifts = append(shifts, shift{p: other, code: c})
		}
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].code < shifts[j].code })
	for _, sh := range shifts {
		sh.p.Code = strconv.Itoa(sh.code - 1)
	}
	return nil
}

func (s *Store) Activate(_ context.Context, id int64, opensAt, closesAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.problems[id]
	if !ok {
		return domain.ErrNotFound
	}
	if target.ReviewStatus != domain.ReviewApproved || target.OpensAt != nil {
		return domain.ErrConflict
	}
	for _, p := range s.problems {
		p.IsActive = false
	}
	o, c := opensAt, closesAt
	target.OpensAt = &o
	target.ClosesAt = &c
	target.IsActive = true
	return nil
}

func (s *Store) List(_ context.Context) ([]domain.ProblemSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*domain.Problem, 0, len(s.problems))
	for _, p := range s.problems {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	out := make([]domain.ProblemSummary, 0, len(all))
	for _, p := range all {
		out = append(out, domain.ProblemSummary{
			Code:         p.Code,
			Difficulty:   p.Difficulty,
			ReviewStatus: p.ReviewStatus,
			IsActive:     p.IsActive,
		})
	}
	return out, nil
}

func (s *Store) CountRecentByAuthor(_ context.Context, authorID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.problems {
		if p.AuthorID == authorID && !p.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- Ledger ---

func (s *Store) Append(_ context.Context, e *domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntryID++
	e.ID = s.nextEntryID
	s.entries = append(s.entries, *e)
	return nil
}

func (s *Store) HasCorrect(_ context.Context, userID string, problemID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.ProblemID == problemID && e.IsCorrect {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ProblemTotal(_ context.Context, userID string, problemID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.entries {
		if e.UserID == userID && e.ProblemID == problemID {
			total += e.Points
		}
	}
	return total, nil
}

func (s *Store) DistinctSolves(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, e := range s.entries {
		if e.UserID == userID && e.IsCorrect {
			seen[e.ProblemID] = struct{}{}
		}
	}
	return len(seen), nil
}

type userAgg struct {
	userID     string
	points     int
	solved     map[int64]struct{}
	firstSolve *time.Time
}

func (s *Store) Overall(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aggs := make(map[string]*userAgg)
	for _, e := range s.entries {
		a, ok := aggs[e.UserID]
		if !ok {
			a = &userAgg{userID: e.UserID, solved: make(map[int64]struct{})}
			aggs[e.UserID] = a
		}
		a.points += e.Points
		if e.IsCorrect {
			a.solved[e.ProblemID] = struct{}{}
			if a.firstSolve == nil || e.SubmittedAt.Before(*a.firstSolve) {
				ts := e.SubmittedAt
				a.firstSolve = &ts
			}
		}
	}
	return rankAggs(aggs, limit, false), nil
}

func (s *Store) ForProblem(_ context.Context, problemID int64, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aggs := make(map[string]*userAgg)
	for _, e := range s.entries {
		if e.ProblemID != problemID {
			continue
		}
		a, ok := aggs[e.UserID]
		if !ok {
			a = &userAgg{userID: e.UserID, solved: make(map[int64]struct{})}
			aggs[e.UserID] = a
		}
		a.points += e.Points
		if e.IsCorrect {
			a.solved[e.ProblemID] = struct{}{}
			if a.firstSolve == nil || e.SubmittedAt.Before(*a.firstSolve) {
				ts := e.SubmittedAt
				a.firstSolve = &ts
			}
		}
	}
	return rankAggs(aggs, limit, true), nil
}

// rankAggs orders by summed points descending, earliest first solve ascending.
// With requireSolve, users whose rows are penalties only are dropped.
func rankAggs(aggs map[string]*userAgg, limit int, requireSolve bool) []domain.LeaderboardEntry {
	list := make([]*userAgg, 0, len(aggs))
	for _, a := range aggs {
		if requireSolve && len(a.solved) == 0 {
			continue
		}
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].points != list[j].points {
			return list[i].points > list[j].points
		}
		fi, fj := list[i].firstSolve, list[j].firstSolve
		switch {
		case fi != nil && fj != nil && !fi.Equal(*fj):
			return fi.Before(*fj)
		case fi != nil && fj == nil:
			return true
		case fi == nil && fj != nil:
			return false
		}
		return list[i].userID < list[j].userID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]domain.LeaderboardEntry, 0, len(list))
	for _, a := range list {
		out = append(out, domain.LeaderboardEntry{
			UserID:     a.userID,
			Points:     a.points,
			Solves:     len(a.solved),
			FirstSolve: a.firstSolve,
		})
	}
	return out
}

func (s *Store) Unscore(_ context.Context, problemID int64, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	affected := 0
	for i := range s.entries {
		e := &s.entries[i]
		if e.ProblemID != problemID {
			continue
		}
		if userID != "" && e.UserID != userID {
			continue
		}
		e.IsCorrect = false
		e.Points = 0
		affected++
	}
	return affected, nil
}

// --- RatingStore ---

func (s *Store) Upsert(_ context.Context, r domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[ratingKey{userID: r.UserID, problemID: r.ProblemID}] = r
	return nil
}

func (s *Store) Curators(_ context.Context, limit int) ([]domain.CuratorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type agg struct {
		created   int
		ratingSum int
		ratings   int
	}
	byProblem := make(map[int64][]int, len(s.ratings))
	for key, r := range s.ratings {
		byProblem[key.problemID] = append(byProblem[key.problemID], r.Rating)
	}
	aggs := make(map[string]*agg)
	for _, p := range s.problems {
		if p.AuthorID == "" {
			continue
		}
		a, ok := aggs[p.AuthorID]
		if !ok {
			a = &agg{}
			aggs[p.AuthorID] = a
		}
		a.created++
		for _, rating := range byProblem[p.ID] {
			a.ratingSum += rating
			a.ratings++
		}
	}
	out := make([]domain.CuratorEntry, 0, len(aggs))
	for authorID, a := range aggs {
		avg := 0.0
		if a.ratings > 0 {
			avg = float64(a.ratingSum) / float64(a.ratings)
		}
		out = append(out, domain.CuratorEntry{
			AuthorID:        authorID,
			ProblemsCreated: a.created,
			AvgRating:       avg,
			RatingsCount:    a.ratings,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProblemsCreated != out[j].ProblemsCreated {
			return out[i].ProblemsCreated > out[j].ProblemsCreated
		}
		if out[i].AvgRating != out[j].AvgRating {
			return out[i].AvgRating > out[j].AvgRating
		}
		return out[i].AuthorID < out[j].AuthorID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- StreakStore ---

func (s *Store) Get(_ context.Context, userID string) (domain.StreakState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.streaks[userID]; ok {
		return state, nil
	}
	return domain.StreakState{UserID: userID}, nil
}

func (s *Store) Put(_ context.Context, state domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[state.UserID] = state
	return nil
}

func numericCode(code string) (int, bool) {
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
