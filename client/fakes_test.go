package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"civicsync/apperr"
	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEpoch is an EpochSource tests can bump directly.
type fakeEpoch struct {
	mu sync.Mutex
	n  uint64
}

func (e *fakeEpoch) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

func (e *fakeEpoch) bump() {
	e.mu.Lock()
	e.n++
	e.mu.Unlock()
}

type listCall struct {
	page   int
	size   int
	filter models.IssueFilter
}

// fakeFeedBackend pages over a fixed slice. When gate is set, each call
// blocks until a value is sent on it.
type fakeFeedBackend struct {
	mu     sync.Mutex
	issues []models.Issue
	err    error
	calls  []listCall
	gate   chan struct{}
	// pageGates, when set, block only the calls for the listed pages.
	pageGates map[int]chan struct{}
	// started receives each call's page number before it blocks.
	started chan int
}

func (b *fakeFeedBackend) ListIssues(ctx context.Context, page, pageSize int, filter models.IssueFilter) (*models.FeedPage, error) {
	b.mu.Lock()
	b.calls = append(b.calls, listCall{page: page, size: pageSize, filter: filter})
	gate, started := b.gate, b.started
	if pg, ok := b.pageGates[page]; ok {
		gate = pg
	}
	b.mu.Unlock()

	if started != nil {
		started <- page
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var matched []models.Issue
	for _, it := range b.issues {
		if filter.Matches(it) {
			matched = append(matched, it)
		}
	}
	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return &models.FeedPage{
		Items:      append([]models.Issue(nil), matched[start:end]...),
		Total:      int64(total),
		Page:       page,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}, nil
}

func (b *fakeFeedBackend) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *fakeFeedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func makeIssues(n int, category models.IssueCategory, author primitive.ObjectID) []models.Issue {
	out := make([]models.Issue, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Issue{
			ID:        primitive.NewObjectID(),
			Title:     "Issue",
			Category:  category,
			Status:    models.Pending,
			VotedBy:   []primitive.ObjectID{},
			CreatedBy: models.CreatorRef(author),
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

// fakeAuthBackend accepts one email/password pair and one token.
type fakeAuthBackend struct {
	mu          sync.Mutex
	principal   models.Principal
	password    string
	token       string
	profileErr  error
	profileGate chan struct{}
	logouts     []string
	logins      int
}

func (b *fakeAuthBackend) Login(_ context.Context, email, password string) (*models.AuthResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins++
	if email != b.principal.Email || password != b.password {
		return nil, apperr.E(apperr.Unauthenticated, "Invalid credentials")
	}
	return &models.AuthResult{Token: b.token, User: b.principal}, nil
}

func (b *fakeAuthBackend) Register(_ context.Context, name, email, _ string) (*models.AuthResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := models.Principal{ID: primitive.NewObjectID(), Name: name, Email: email}
	return &models.AuthResult{Token: "registered-token", User: p}, nil
}

func (b *fakeAuthBackend) Profile(ctx context.Context, token string) (*models.Principal, error) {
	if b.profileGate != nil {
		select {
		case <-b.profileGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	if token != b.token {
		return nil, apperr.E(apperr.Unauthenticated, "Invalid authorization token")
	}
	p := b.principal
	return &p, nil
}

func (b *fakeAuthBackend) Logout(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logouts = append(b.logouts, token)
	return nil
}

// fakeIssueBackend applies the server rules to an in-memory map. When gate
// is set, mutations block until released.
type fakeIssueBackend struct {
	mu      sync.Mutex
	actor   func() primitive.ObjectID
	issues  map[primitive.ObjectID]models.Issue
	calls   map[string]int
	gate    chan struct{}
	started chan struct{}
	err     error
}

func newFakeIssueBackend(actor func() primitive.ObjectID, issues ...models.Issue) *fakeIssueBackend {
	b := &fakeIssueBackend{actor: actor, issues: map[primitive.ObjectID]models.Issue{}, calls: map[string]int{}}
	for _, it := range issues {
		b.issues[it.ID] = it.Clone()
	}
	return b
}

func (b *fakeIssueBackend) enter(op string) error {
	b.mu.Lock()
	b.calls[op]++
	gate, started := b.gate, b.started
	b.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *fakeIssueBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeIssueBackend) GetIssue(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	if err := b.enter("get"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.issues[id]
	if !ok {
		return nil, apperr.ErrIssueNotFound
	}
	out := it.Clone()
	return &out, nil
}

func (b *fakeIssueBackend) MyIssues(context.Context) ([]models.Issue, error) {
	if err := b.enter("mine"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Issue
	for _, it := range b.issues {
		if it.IsAuthor(b.actor()) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (b *fakeIssueBackend) CreateIssue(_ context.Context, in models.NewIssue) (*models.Issue, error) {
	if err := b.enter("create"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it := models.Issue{
		ID: primitive.NewObjectID(), Title: in.Title, Description: in.Description,
		Category: in.Category, Location: *in.Location, Status: models.Pending,
		VotedBy: []primitive.ObjectID{}, CreatedBy: models.CreatorRef(b.actor()),
	}
	b.issues[it.ID] = it
	out := it.Clone()
	return &out, nil
}

func (b *fakeIssueBackend) UpdateIssue(_ context.Context, id primitive.ObjectID, patch models.IssuePatch) (*models.Issue, error) {
	if err := b.enter("update"); err != nil {
		return nil, err
	}
	return b.apply(id, func(it *models.Issue) error {
		if err := models.AuthorizeChange(it, b.actor()); err != nil {
			return err
		}
		patch.Apply(it)
		return nil
	})
}

func (b *fakeIssueBackend) DeleteIssue(_ context.Context, id primitive.ObjectID) error {
	if err := b.enter("delete"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.issues[id]
	if !ok {
		return apperr.ErrIssueNotFound
	}
	if err := models.AuthorizeChange(&it, b.actor()); err != nil {
		return err
	}
	delete(b.issues, id)
	return nil
}

func (b *fakeIssueBackend) Vote(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	if err := b.enter("vote"); err != nil {
		return nil, err
	}
	return b.apply(id, func(it *models.Issue) error {
		return it.RecordVote(b.actor())
	})
}

func (b *fakeIssueBackend) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error) {
	if err := b.enter("status"); err != nil {
		return nil, err
	}
	return b.apply(id, func(it *models.Issue) error {
		if err := models.AuthorizeTransition(it, b.actor(), status); err != nil {
			return err
		}
		it.Status = status
		return nil
	})
}

func (b *fakeIssueBackend) apply(id primitive.ObjectID, fn func(*models.Issue) error) (*models.Issue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.issues[id]
	if !ok {
		return nil, apperr.ErrIssueNotFound
	}
	it = it.Clone()
	if err := fn(&it); err != nil {
		return nil, err
	}
	b.issues[id] = it
	out := it.Clone()
	return &out, nil
}
