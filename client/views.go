package client

import (
	"context"
	"sync"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// View is a local collection holding copies of issues. The reconciler
// replaces or removes copies in every attached view.
type View interface {
	Get(id primitive.ObjectID) (models.Issue, bool)
	Replace(issue models.Issue)
	Remove(id primitive.ObjectID)
}

// Inserter is implemented by views that show newly created issues.
type Inserter interface {
	Insert(issue models.Issue)
}

// DetailCache holds issues opened one at a time.
type DetailCache struct {
	backend IssueBackend
	epochs  EpochSource

	mu     sync.Mutex
	issues map[primitive.ObjectID]models.Issue
}

func NewDetailCache(backend IssueBackend, epochs EpochSource) *DetailCache {
	return &DetailCache{backend: backend, epochs: epochs, issues: map[primitive.ObjectID]models.Issue{}}
}

// Load fetches id from the server and caches it. A not-found answer evicts
// any cached copy.
func (d *DetailCache) Load(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	epoch := d.epochs.Epoch()
	issue, err := d.backend.GetIssue(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			d.Remove(id)
		}
		return models.Issue{}, err
	}
	if epoch != d.epochs.Epoch() {
		return models.Issue{}, ErrStale
	}

	d.mu.Lock()
	d.issues[id] = issue.Clone()
	d.mu.Unlock()
	return issue.Clone(), nil
}

func (d *DetailCache) Get(id primitive.ObjectID) (models.Issue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	issue, ok := d.issues[id]
	if !ok {
		return models.Issue{}, false
	}
	return issue.Clone(), true
}

func (d *DetailCache) Replace(issue models.Issue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.issues[issue.ID]; ok {
		d.issues[issue.ID] = issue.Clone()
	}
}

func (d *DetailCache) Remove(id primitive.ObjectID) {
	d.mu.Lock()
	delete(d.issues, id)
	d.mu.Unlock()
}

// MyIssues is the signed-in principal's own issues, newest first.
type MyIssues struct {
	backend IssueBackend
	epochs  EpochSource

	mu     sync.Mutex
	items  []models.Issue
	loaded bool
}

func NewMyIssues(backend IssueBackend, epochs EpochSource) *MyIssues {
	return &MyIssues{backend: backend, epochs: epochs}
}

func (m *MyIssues) Load(ctx context.Context) ([]models.Issue, error) {
	epoch := m.epochs.Epoch()
	items, err := m.backend.MyIssues(ctx)
	if err != nil {
		return nil, err
	}
	if epoch != m.epochs.Epoch() {
		return nil, ErrStale
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]models.Issue, len(items))
	for i, it := range items {
		m.items[i] = it.Clone()
	}
	m.loaded = true
	return m.snapshotLocked(), nil
}

func (m *MyIssues) Items() []models.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *MyIssues) snapshotLocked() []models.Issue {
	out := make([]models.Issue, len(m.items))
	for i, it := range m.items {
		out[i] = it.Clone()
	}
	return out
}

func (m *MyIssues) Get(id primitive.ObjectID) (models.Issue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return models.Issue{}, false
}

func (m *MyIssues) Replace(issue models.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == issue.ID {
			m.items[i] = issue.Clone()
			return
		}
	}
}

func (m *MyIssues) Remove(id primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return
		}
	}
}

// Insert adds a newly created issue once the list has been loaded.
func (m *MyIssues) Insert(issue models.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return
	}
	for _, it := range m.items {
		if it.ID == issue.ID {
			return
		}
	}
	m.items = append([]models.Issue{issue.Clone()}, m.items...)
}

// Clear drops the list, for when the principal changes.
func (m *MyIssues) Clear() {
	m.mu.Lock()
	m.items = nil
	m.loaded = false
	m.mu.Unlock()
}
