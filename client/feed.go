package client

import (
	"context"
	"log/slog"
	"sync"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPageSize matches the server's default list limit.
const DefaultPageSize = 10

// EpochSource reports the current session epoch.
type EpochSource interface {
	Epoch() uint64
}

// FeedState is a point-in-time copy of the feed.
type FeedState struct {
	Filter   models.IssueFilter
	Items    []models.Issue
	Total    int64
	HasMore  bool
	NextPage int
	Loading  bool
	Err      error
}

// Feed accumulates pages of issues for one filter at a time.
//
// Every Reset starts a new generation. A response is applied only if its
// generation is still current and the session epoch has not moved; anything
// else is dropped with ErrStale.
type Feed struct {
	backend  FeedBackend
	epochs   EpochSource
	pageSize int
	logger   *slog.Logger

	mu         sync.Mutex
	filter     models.IssueFilter
	items      []models.Issue
	total      int64
	hasMore    bool
	nextPage   int
	generation uint64
	resetting  bool
	appending  bool
	err        error
}

type FeedOption func(*Feed)

func WithPageSize(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

func WithFeedLogger(logger *slog.Logger) FeedOption {
	return func(f *Feed) { f.logger = logger }
}

func NewFeed(backend FeedBackend, epochs EpochSource, opts ...FeedOption) *Feed {
	f := &Feed{
		backend:  backend,
		epochs:   epochs,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
		nextPage: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Reset discards the accumulated items and loads page 1 for filter.
func (f *Feed) Reset(ctx context.Context, filter models.IssueFilter) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.filter = filter
	f.items = nil
	f.total = 0
	f.hasMore = false
	f.nextPage = 1
	f.resetting = true
	f.appending = false
	f.err = nil
	epoch := f.epochs.Epoch()
	f.mu.Unlock()

	page, err := f.backend.ListIssues(ctx, 1, f.pageSize, filter)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return ErrStale
	}
	f.resetting = false
	if epoch != f.epochs.Epoch() {
		return ErrStale
	}
	if err != nil {
		f.items = []models.Issue{}
		f.total = 0
		f.hasMore = false
		f.nextPage = 1
		f.err = err
		f.logger.WarnContext(ctx, "feed reset failed", "error", err)
		return err
	}

	f.items = matching(page.Items, filter, nil)
	f.total = page.Total
	f.hasMore = page.HasMore
	if page.HasMore {
		f.nextPage = 2
	} else {
		f.nextPage = 1
	}
	return nil
}

// LoadMore appends the next page. It refuses when the server said there
// are no more pages or when a load for this feed is already running.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.resetting || f.appending {
		f.mu.Unlock()
		return ErrLoadInProgress
	}
	if !f.hasMore {
		f.mu.Unlock()
		return ErrNoMorePages
	}
	gen := f.generation
	pageNo := f.nextPage
	filter := f.filter
	f.appending = true
	epoch := f.epochs.Epoch()
	f.mu.Unlock()

	page, err := f.backend.ListIssues(ctx, pageNo, f.pageSize, filter)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return ErrStale
	}
	f.appending = false
	if epoch != f.epochs.Epoch() {
		return ErrStale
	}
	if err != nil {
		f.hasMore = false
		f.err = err
		f.logger.WarnContext(ctx, "feed append failed", "page", pageNo, "error", err)
		return err
	}

	if len(page.Items) > 0 {
		f.items = append(f.items, matching(page.Items, filter, f.items)...)
		f.nextPage++
	}
	f.hasMore = page.HasMore
	return nil
}

// matching keeps the items that satisfy filter and are not already in have.
func matching(items []models.Issue, filter models.IssueFilter, have []models.Issue) []models.Issue {
	seen := make(map[primitive.ObjectID]struct{}, len(have))
	for _, it := range have {
		seen[it.ID] = struct{}{}
	}
	out := make([]models.Issue, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup || !filter.Matches(it) {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it.Clone())
	}
	return out
}

func (f *Feed) Snapshot() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]models.Issue, len(f.items))
	for i, it := range f.items {
		items[i] = it.Clone()
	}
	return FeedState{
		Filter:   f.filter,
		Items:    items,
		Total:    f.total,
		HasMore:  f.hasMore,
		NextPage: f.nextPage,
		Loading:  f.resetting || f.appending,
		Err:      f.err,
	}
}

// CanLoadMore reports whether a "load more" action should be offered.
func (f *Feed) CanLoadMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore && !f.resetting && !f.appending
}

func (f *Feed) DismissError() {
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
}

func (f *Feed) Get(id primitive.ObjectID) (models.Issue, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return models.Issue{}, false
}

// Replace swaps in the server's copy of an issue already in the feed. If the
// new copy no longer fits the filter it leaves the feed.
func (f *Feed) Replace(issue models.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID != issue.ID {
			continue
		}
		if !f.filter.Matches(issue) {
			f.removeAt(i)
			return
		}
		f.items[i] = issue.Clone()
		return
	}
}

func (f *Feed) Remove(id primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == id {
			f.removeAt(i)
			return
		}
	}
}

// Insert puts a newly created issue at the head of the feed when it fits
// the filter. Total is the server's count from the last reset and is not
// adjusted here.
func (f *Feed) Insert(issue models.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.filter.Matches(issue) {
		return
	}
	for _, it := range f.items {
		if it.ID == issue.ID {
			return
		}
	}
	f.items = append([]models.Issue{issue.Clone()}, f.items...)
}

func (f *Feed) removeAt(i int) {
	f.items = append(f.items[:i], f.items[i+1:]...)
}
