// Package services holds the issue lifecycle and account rules. Controllers
// only translate HTTP; everything that decides accept-or-reject lives here.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civicsync/apperr"
	"civicsync/metrics"
	"civicsync/models"
	"civicsync/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecentLimit is how many issues the map view asks for.
const RecentLimit = 50

// maxTransitionAttempts bounds the re-read loop when a status write loses a race.
const maxTransitionAttempts = 3

type IssueService struct {
	issues  store.IssueStore
	users   store.UserStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func NewIssueService(issues store.IssueStore, users store.UserStore, opts ...Option) (*IssueService, error) {
	if issues == nil {
		return nil, fmt.Errorf("issue store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	o := applyOptions(opts)
	return &IssueService{
		issues:  issues,
		users:   users,
		metrics: o.metrics,
		logger:  o.logger,
		now:     o.now,
	}, nil
}

func (s *IssueService) Create(ctx context.Context, actor primitive.ObjectID, in models.NewIssue) (*models.Issue, error) {
	if actor.IsZero() {
		return nil, s.reject("create", apperr.ErrAuthRequired)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, s.reject("create", err)
	}

	now := s.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    *in.Location,
		ImageURL:    in.ImageURL,
		Status:      models.Pending,
		Votes:       0,
		VotedBy:     []primitive.ObjectID{},
		CreatedBy:   models.CreatorRef(actor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, s.internal("Failed to create issue", err)
	}

	s.metrics.IncrementIssuesCreated()
	s.logger.InfoContext(ctx, "issue created", "issue_id", issue.ID.Hex(), "user_id", actor.Hex())
	return s.resolveOne(ctx, issue), nil
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("Failed to retrieve issue", err)
	}
	return s.resolveOne(ctx, issue), nil
}

// List returns one feed page; HasMore is decided here, never by the client.
func (s *IssueService) List(ctx context.Context, q store.ListQuery) (*models.FeedPage, error) {
	q = q.Normalize()
	if q.Filter.Category != "" && !q.Filter.Category.Valid() {
		return nil, apperr.Validationf("Invalid category")
	}
	if q.Filter.Status != "" && !q.Filter.Status.Valid() {
		return nil, apperr.Validationf("Invalid status")
	}

	items, total, err := s.issues.List(ctx, q)
	if err != nil {
		return nil, s.internal("Failed to retrieve issues", err)
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &models.FeedPage{
		Items:      s.resolve(ctx, items),
		Total:      total,
		Page:       q.Page,
		TotalPages: totalPages,
		HasMore:    q.Page < totalPages,
	}, nil
}

func (s *IssueService) ListByCreator(ctx context.Context, actor primitive.ObjectID) ([]models.Issue, error) {
	if actor.IsZero() {
		return nil, apperr.ErrAuthRequired
	}
	items, err := s.issues.ListByCreator(ctx, actor)
	if err != nil {
		return nil, s.internal("Failed to retrieve issues", err)
	}
	return s.resolve(ctx, items), nil
}

func (s *IssueService) Recent(ctx context.Context) ([]models.Issue, error) {
	items, err := s.issues.Recent(ctx, RecentLimit)
	if err != nil {
		return nil, s.internal("Failed to retrieve recent issues", err)
	}
	return items, nil
}

func (s *IssueService) Analytics(ctx context.Context) (*models.Analytics, error) {
	out, err := s.issues.Analytics(ctx, s.now())
	if err != nil {
		return nil, s.internal("Failed to get analytics", err)
	}
	return out, nil
}

func (s *IssueService) Update(ctx context.Context, actor, id primitive.ObjectID, patch models.IssuePatch) (*models.Issue, error) {
	if actor.IsZero() {
		return nil, s.reject("update", apperr.ErrAuthRequired)
	}
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("Failed to retrieve issue", err)
	}
	if err := models.AuthorizeChange(issue, actor); err != nil {
		return nil, s.reject("update", err)
	}
	if patch.Empty() {
		return nil, s.reject("update", apperr.Validationf("Nothing to update"))
	}
	if err := patch.Validate(); err != nil {
		return nil, s.reject("update", err)
	}

	updated, err := s.issues.Update(ctx, id, actor, patch, s.now())
	if errors.Is(err, store.ErrConflict) {
		return nil, s.reject("update", s.reclassifyChange(ctx, id, actor))
	}
	if err != nil {
		return nil, s.storeError("Failed to update issue", err)
	}
	return s.resolveOne(ctx, updated), nil
}

func (s *IssueService) Delete(ctx context.Context, actor, id primitive.ObjectID) error {
	if actor.IsZero() {
		return s.reject("delete", apperr.ErrAuthRequired)
	}
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return s.storeError("Failed to retrieve issue", err)
	}
	if err := models.AuthorizeChange(issue, actor); err != nil {
		return s.reject("delete", err)
	}

	err = s.issues.Delete(ctx, id, actor)
	if errors.Is(err, store.ErrConflict) {
		return s.reject("delete", s.reclassifyChange(ctx, id, actor))
	}
	if err != nil {
		return s.storeError("Failed to delete issue", err)
	}
	s.logger.InfoContext(ctx, "issue deleted", "issue_id", id.Hex(), "user_id", actor.Hex())
	return nil
}

// reclassifyChange explains why a conditional edit or delete matched nothing.
func (s *IssueService) reclassifyChange(ctx context.Context, id, actor primitive.ObjectID) error {
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return s.storeError("Failed to retrieve issue", err)
	}
	if err := models.AuthorizeChange(issue, actor); err != nil {
		return err
	}
	return apperr.ErrNotPending
}

// Vote adds actor to the issue's ledger. Votes are permanent.
func (s *IssueService) Vote(ctx context.Context, actor, id primitive.ObjectID) (*models.Issue, error) {
	if actor.IsZero() {
		return nil, s.reject("vote", apperr.ErrAuthRequired)
	}
	issue, err := s.issues.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("Failed to retrieve issue", err)
	}
	if err := models.AuthorizeVote(issue, actor); err != nil {
		return nil, s.reject("vote", err)
	}

	updated, err := s.issues.AddVote(ctx, id, actor)
	if errors.Is(err, store.ErrConflict) {
		return nil, s.reject("vote", apperr.ErrAlreadyVoted)
	}
	if err != nil {
		return nil, s.storeError("Failed to cast vote", err)
	}

	s.metrics.IncrementVotesCast()
	return s.resolveOne(ctx, updated), nil
}

// UpdateStatus applies a forward-only transition requested by the author.
func (s *IssueService) UpdateStatus(ctx context.Context, actor, id primitive.ObjectID, target models.IssueStatus) (*models.Issue, error) {
	if actor.IsZero() {
		return nil, s.reject("status", apperr.ErrAuthRequired)
	}
	if !target.Valid() {
		return nil, s.reject("status", apperr.Validationf("Invalid status"))
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		issue, err := s.issues.Get(ctx, id)
		if err != nil {
			return nil, s.storeError("Failed to retrieve issue", err)
		}
		if err := models.AuthorizeTransition(issue, actor, target); err != nil {
			return nil, s.reject("status", err)
		}

		from := issue.Status
		updated, err := s.issues.SetStatus(ctx, id, from, target, s.now())
		if errors.Is(err, store.ErrConflict) {
			// Status moved underneath us; re-read and judge again.
			continue
		}
		if err != nil {
			return nil, s.storeError("Failed to update status", err)
		}

		s.metrics.ObserveTransition(string(from), string(target))
		s.logger.InfoContext(ctx, "issue status changed",
			"issue_id", id.Hex(), "from", from, "to", target)
		return s.resolveOne(ctx, updated), nil
	}
	return nil, s.reject("status", apperr.ErrInvalidTransition)
}

func (s *IssueService) resolveOne(ctx context.Context, issue *models.Issue) *models.Issue {
	out := s.resolve(ctx, []models.Issue{*issue})
	return &out[0]
}

// resolve swaps creator references for profiles. A lookup failure leaves the
// references in place.
func (s *IssueService) resolve(ctx context.Context, issues []models.Issue) []models.Issue {
	if len(issues) == 0 {
		return issues
	}
	seen := map[primitive.ObjectID]struct{}{}
	var ids []primitive.ObjectID
	for _, issue := range issues {
		id := issue.CreatedBy.ID()
		if _, ok := seen[id]; !ok && !id.IsZero() {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "resolving issue creators", "error", err)
		return issues
	}
	for i := range issues {
		if u, ok := users[issues[i].CreatedBy.ID()]; ok {
			issues[i].CreatedBy = models.ResolvedCreator(u.Profile())
		}
	}
	return issues
}

func (s *IssueService) reject(operation string, err error) error {
	s.metrics.ObserveRejection(operation, string(apperr.KindOf(err)))
	return err
}

func (s *IssueService) storeError(message string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrIssueNotFound
	}
	return s.internal(message, err)
}

func (s *IssueService) internal(message string, err error) error {
	s.logger.Error(message, "error", err)
	return apperr.Wrap(apperr.Internal, message, err)
}
