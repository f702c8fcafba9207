// Package store persists issues and users. Every method that changes an
// issue does so with a single conditional write, so the ledger and status
// rules hold even when two requests race.
package store

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks IssueStore,UserStore

import (
	"context"
	"errors"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("record no longer matches the expected state")
	ErrDuplicateEmail = errors.New("email already registered")
)

const (
	SortNewest = "newest"
	SortOldest = "oldest"

	DefaultLimit = 10
	MaxLimit     = 100

	// TopVotedWindow is how many recent issues the analytics top list looks at.
	TopVotedWindow = 50
	TopVotedCount  = 5
)

// ListQuery selects one page of issues.
type ListQuery struct {
	Filter models.IssueFilter
	Search string
	Sort   string
	Page   int
	Limit  int
}

// Normalize clamps paging values the way the list endpoint always has.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		q.Limit = DefaultLimit
	}
	if q.Sort != SortOldest {
		q.Sort = SortNewest
	}
	return q
}

func (q ListQuery) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	List(ctx context.Context, q ListQuery) ([]models.Issue, int64, error)
	ListByCreator(ctx context.Context, creator primitive.ObjectID) ([]models.Issue, error)
	// Recent returns the newest issues first, at most limit of them.
	Recent(ctx context.Context, limit int) ([]models.Issue, error)
	// Update applies patch only while the issue is Pending and owned by author.
	// ErrConflict means the precondition no longer held.
	Update(ctx context.Context, id, author primitive.ObjectID, patch models.IssuePatch, now time.Time) (*models.Issue, error)
	// Delete removes the issue only while it is Pending and owned by author.
	Delete(ctx context.Context, id, author primitive.ObjectID) error
	// AddVote adds voter to votedBy and increments votes in one write.
	// ErrConflict means voter was already in the ledger.
	AddVote(ctx context.Context, id, voter primitive.ObjectID) (*models.Issue, error)
	// SetStatus moves the issue from -> to. ErrConflict means the stored
	// status was no longer from.
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.IssueStatus, now time.Time) (*models.Issue, error)
	Analytics(ctx context.Context, now time.Time) (*models.Analytics, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

// lastSevenDays returns the local-midnight start of each of the last seven days, oldest first.
func lastSevenDays(now time.Time) []time.Time {
	days := make([]time.Time, 0, 7)
	for i := 6; i >= 0; i-- {
		date := now.AddDate(0, 0, -i)
		days = append(days, time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()))
	}
	return days
}
