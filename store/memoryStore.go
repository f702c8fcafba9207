package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueStore keeps issues in a map. Each method holds the lock for its
// whole read-check-write, which gives the same guarantees as the conditional
// Mongo writes.
type MemoryIssueStore struct {
	mu     sync.Mutex
	issues map[primitive.ObjectID]models.Issue
}

func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{issues: make(map[primitive.ObjectID]models.Issue)}
}

func (s *MemoryIssueStore) Create(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.VotedBy == nil {
		issue.VotedBy = []primitive.ObjectID{}
	}
	s.issues[issue.ID] = stored(*issue)
	return nil
}

// stored drops any resolved creator profile, as the Mongo codec does.
func stored(issue models.Issue) models.Issue {
	out := issue.Clone()
	out.CreatedBy = models.CreatorRef(issue.CreatedBy.ID())
	return out
}

func (s *MemoryIssueStore) Get(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := issue.Clone()
	return &out, nil
}

func (s *MemoryIssueStore) List(_ context.Context, q ListQuery) ([]models.Issue, int64, error) {
	q = q.Normalize()

	s.mu.Lock()
	matched := s.sorted(q.Sort, func(issue models.Issue) bool {
		return q.Filter.Matches(issue) && matchesSearch(issue, q.Search)
	})
	s.mu.Unlock()

	total := int64(len(matched))
	start := int(q.Skip())
	if start >= len(matched) {
		return []models.Issue{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matchesSearch(issue models.Issue, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(issue.Title), search) ||
		strings.Contains(strings.ToLower(issue.Description), search)
}

// sorted must be called with mu held.
func (s *MemoryIssueStore) sorted(order string, keep func(models.Issue) bool) []models.Issue {
	out := []models.Issue{}
	for _, issue := range s.issues {
		if keep(issue) {
			out = append(out, issue.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == SortOldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if order == SortOldest {
			return a.ID.Hex() < b.ID.Hex()
		}
		return a.ID.Hex() > b.ID.Hex()
	})
	return out
}

func (s *MemoryIssueStore) ListByCreator(_ context.Context, creator primitive.ObjectID) ([]models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(SortNewest, func(issue models.Issue) bool {
		return issue.CreatedBy.ID() == creator
	}), nil
}

func (s *MemoryIssueStore) Recent(_ context.Context, limit int) ([]models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(SortNewest, func(models.Issue) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryIssueStore) Update(_ context.Context, id, author primitive.ObjectID, patch models.IssuePatch, now time.Time) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		if issue.CreatedBy.ID() != author || issue.Status != models.Pending {
			return ErrConflict
		}
		patch.Apply(issue)
		issue.UpdatedAt = now
		return nil
	})
}

func (s *MemoryIssueStore) Delete(_ context.Context, id, author primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return ErrNotFound
	}
	if issue.CreatedBy.ID() != author || issue.Status != models.Pending {
		return ErrConflict
	}
	delete(s.issues, id)
	return nil
}

func (s *MemoryIssueStore) AddVote(_ context.Context, id, voter primitive.ObjectID) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		if err := issue.RecordVote(voter); err != nil {
			return ErrConflict
		}
		return nil
	})
}

func (s *MemoryIssueStore) SetStatus(_ context.Context, id primitive.ObjectID, from, to models.IssueStatus, now time.Time) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		if issue.Status != from {
			return ErrConflict
		}
		issue.Status = to
		issue.UpdatedAt = now
		return nil
	})
}

func (s *MemoryIssueStore) mutate(id primitive.ObjectID, fn func(*models.Issue) error) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return nil, err
	}
	s.issues[id] = next
	out := next.Clone()
	return &out, nil
}

func (s *MemoryIssueStore) Analytics(_ context.Context, now time.Time) (*models.Analytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &models.Analytics{
		IssuesByCategory: []models.CategoryCount{},
		TopVotedIssues:   []models.IssueVotes{},
	}

	byCategory := map[string]int64{}
	for _, issue := range s.issues {
		byCategory[string(issue.Category)]++
		out.TotalIssues++
		out.TotalVotes += int64(issue.Votes)
		if issue.Status == models.Pending || issue.Status == models.InProgress {
			out.OpenIssues++
		}
	}
	for name, count := range byCategory {
		out.IssuesByCategory = append(out.IssuesByCategory, models.CategoryCount{Name: name, Value: count})
	}
	sort.Slice(out.IssuesByCategory, func(i, j int) bool {
		return out.IssuesByCategory[i].Name < out.IssuesByCategory[j].Name
	})

	for _, day := range lastSevenDays(now) {
		next := day.AddDate(0, 0, 1)
		var count int64
		for _, issue := range s.issues {
			if !issue.CreatedAt.Before(day) && issue.CreatedAt.Before(next) {
				count++
			}
		}
		out.Last7Days = append(out.Last7Days, models.DayCount{Date: day.Format("2006-01-02"), Count: count})
	}

	recent := s.sorted(SortNewest, func(models.Issue) bool { return true })
	if len(recent) > TopVotedWindow {
		recent = recent[:TopVotedWindow]
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Votes > recent[j].Votes })
	if len(recent) > TopVotedCount {
		recent = recent[:TopVotedCount]
	}
	for _, issue := range recent {
		out.TopVotedIssues = append(out.TopVotedIssues, models.IssueVotes{
			ID: issue.ID, Title: issue.Title, Category: issue.Category, Votes: issue.Votes,
		})
	}
	return out, nil
}

// MemoryUserStore is the in-memory UserStore.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicateEmail
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			u.Password = ""
			out[id] = u
		}
	}
	return out, nil
}
