package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"civicsync/apperr"
	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reconciler sends mutations to the server and applies the server's copy of
// the result to every attached view. It never patches fields locally.
type Reconciler struct {
	backend  IssueBackend
	session  *Session
	inflight *InFlight
	logger   *slog.Logger

	mu    sync.RWMutex
	views []View
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

func NewReconciler(backend IssueBackend, session *Session, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		backend:  backend,
		session:  session,
		inflight: NewInFlight(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach registers views that hold issue copies.
func (r *Reconciler) Attach(views ...View) {
	r.mu.Lock()
	r.views = append(r.views, views...)
	r.mu.Unlock()
}

// Pending reports whether a mutation for id is outstanding.
func (r *Reconciler) Pending(id primitive.ObjectID) bool {
	return r.inflight.Busy(id)
}

func (r *Reconciler) Vote(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	actor, err := r.actor(ctx)
	if err != nil {
		return nil, err
	}
	if local, ok := r.freshest(id); ok {
		if err := models.AuthorizeVote(&local, actor); err != nil {
			return nil, err
		}
	}
	return r.mutate(ctx, id, func() (*models.Issue, error) {
		return r.backend.Vote(ctx, id)
	})
}

func (r *Reconciler) UpdateStatus(ctx context.Context, id primitive.ObjectID, target models.IssueStatus) (*models.Issue, error) {
	actor, err := r.actor(ctx)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, apperr.Validationf("Invalid status")
	}
	if local, ok := r.freshest(id); ok {
		if err := models.AuthorizeTransition(&local, actor, target); err != nil {
			return nil, err
		}
	}
	return r.mutate(ctx, id, func() (*models.Issue, error) {
		return r.backend.UpdateStatus(ctx, id, target)
	})
}

func (r *Reconciler) Edit(ctx context.Context, id primitive.ObjectID, patch models.IssuePatch) (*models.Issue, error) {
	actor, err := r.actor(ctx)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperr.Validationf("Nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if local, ok := r.freshest(id); ok {
		if err := models.AuthorizeChange(&local, actor); err != nil {
			return nil, err
		}
	}
	return r.mutate(ctx, id, func() (*models.Issue, error) {
		return r.backend.UpdateIssue(ctx, id, patch)
	})
}

func (r *Reconciler) Delete(ctx context.Context, id primitive.ObjectID) error {
	actor, err := r.actor(ctx)
	if err != nil {
		return err
	}
	if local, ok := r.freshest(id); ok {
		if err := models.AuthorizeChange(&local, actor); err != nil {
			return err
		}
	}

	release, err := r.inflight.Acquire(id)
	if err != nil {
		return err
	}
	defer release()

	epoch := r.session.Epoch()
	if err := r.backend.DeleteIssue(ctx, id); err != nil {
		return r.failed(ctx, id, err)
	}
	if epoch != r.session.Epoch() {
		return ErrStale
	}
	r.remove(id)
	return nil
}

// Create validates locally; invalid input never reaches the server.
func (r *Reconciler) Create(ctx context.Context, in models.NewIssue) (*models.Issue, error) {
	if _, err := r.actor(ctx); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	epoch := r.session.Epoch()
	created, err := r.backend.CreateIssue(ctx, in)
	if err != nil {
		return nil, r.failed(ctx, primitive.NilObjectID, err)
	}
	if epoch != r.session.Epoch() {
		return nil, ErrStale
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		if ins, ok := v.(Inserter); ok {
			ins.Insert(*created)
		}
	}
	return created, nil
}

// actor returns the signed-in principal's id. A session still restoring a
// stored credential is waited on rather than treated as anonymous.
func (r *Reconciler) actor(ctx context.Context) (primitive.ObjectID, error) {
	if r.session.IsLoading() {
		if err := r.session.Wait(ctx); err != nil {
			return primitive.NilObjectID, err
		}
	}
	actor := r.session.Actor()
	if actor.IsZero() {
		return primitive.NilObjectID, apperr.ErrAuthRequired
	}
	return actor, nil
}

// mutate runs send under the per-issue guard and applies its result.
func (r *Reconciler) mutate(ctx context.Context, id primitive.ObjectID, send func() (*models.Issue, error)) (*models.Issue, error) {
	release, err := r.inflight.Acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	epoch := r.session.Epoch()
	updated, err := send()
	if err != nil {
		return nil, r.failed(ctx, id, err)
	}
	if epoch != r.session.Epoch() {
		return nil, ErrStale
	}
	r.replace(*updated)
	return updated, nil
}

// failed leaves local copies untouched except where the error proves them
// wrong: a missing issue is evicted and a rejected credential ends the session.
func (r *Reconciler) failed(ctx context.Context, id primitive.ObjectID, err error) error {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		if !id.IsZero() {
			r.remove(id)
		}
	case apperr.Unauthenticated:
		r.session.Invalidate(ctx)
	}
	r.logger.DebugContext(ctx, "mutation rejected", "issue_id", id.Hex(), "error", err)
	return err
}

// freshest returns the first local copy of id across the attached views.
func (r *Reconciler) freshest(id primitive.ObjectID) (models.Issue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		if issue, ok := v.Get(id); ok {
			return issue, true
		}
	}
	return models.Issue{}, false
}

func (r *Reconciler) replace(issue models.Issue) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		v.Replace(issue)
	}
}

func (r *Reconciler) remove(id primitive.ObjectID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		v.Remove(id)
	}
}
