package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =============================================================================
// Issue lifecycle against the in-memory stores
// =============================================================================

type IssueServiceSuite struct {
	suite.Suite
	ctx     context.Context
	issues  *store.MemoryIssueStore
	users   *store.MemoryUserStore
	service *IssueService
	author  models.User
	other   models.User
	clock   time.Time
}

func TestIssueServiceSuite(t *testing.T) {
	suite.Run(t, new(IssueServiceSuite))
}

func (s *IssueServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.issues = store.NewMemoryIssueStore()
	s.users = store.NewMemoryUserStore()
	s.clock = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	s.author = models.User{Name: "Asha", Email: "asha@example.com"}
	s.other = models.User{Name: "Ben", Email: "ben@example.com"}
	s.Require().NoError(s.users.Create(s.ctx, &s.author))
	s.Require().NoError(s.users.Create(s.ctx, &s.other))

	var err error
	s.service, err = NewIssueService(s.issues, s.users,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time {
			s.clock = s.clock.Add(time.Minute)
			return s.clock
		}),
	)
	s.Require().NoError(err)
}

func (s *IssueServiceSuite) create(category models.IssueCategory) *models.Issue {
	issue, err := s.service.Create(s.ctx, s.author.ID, models.NewIssue{
		Title:       "Broken streetlight",
		Description: "Dark corner near the park",
		Category:    category,
		Location:    &models.Location{Lat: 12.97, Lng: 77.59, Address: "MG Road"},
	})
	s.Require().NoError(err)
	return issue
}

func (s *IssueServiceSuite) TestNewRequiresStores() {
	_, err := NewIssueService(nil, s.users)
	s.ErrorContains(err, "issue store is required")
	_, err = NewIssueService(s.issues, nil)
	s.ErrorContains(err, "user store is required")
}

func (s *IssueServiceSuite) TestCreate() {
	s.Run("starts pending with an empty ledger and resolved creator", func() {
		issue := s.create(models.Safety)
		s.Equal(models.Pending, issue.Status)
		s.Zero(issue.Votes)
		s.Empty(issue.VotedBy)
		profile, ok := issue.CreatedBy.Profile()
		s.True(ok)
		s.Equal("Asha", profile.Name)
	})

	s.Run("anonymous is rejected", func() {
		_, err := s.service.Create(s.ctx, primitive.NilObjectID, models.NewIssue{Title: "x"})
		s.ErrorIs(err, apperr.ErrAuthRequired)
	})

	s.Run("missing fields are validation errors", func() {
		_, err := s.service.Create(s.ctx, s.author.ID, models.NewIssue{
			Title: "   ", Description: "d", Category: models.Other,
		})
		s.Equal(apperr.Validation, apperr.KindOf(err))

		_, err = s.service.Create(s.ctx, s.author.ID, models.NewIssue{
			Title: "t", Description: "d", Category: "Road",
		})
		s.Equal(apperr.Validation, apperr.KindOf(err))

		_, err = s.service.Create(s.ctx, s.author.ID, models.NewIssue{
			Title: "t", Description: "d", Category: models.Other, Location: &models.Location{Lat: 91},
		})
		s.Equal(apperr.Validation, apperr.KindOf(err))

		_, err = s.service.Create(s.ctx, s.author.ID, models.NewIssue{
			Title: "t", Description: "d", Category: models.Other,
		})
		s.ErrorIs(err, apperr.E(apperr.Validation, "Please select a location on the map"))
	})
}

func (s *IssueServiceSuite) TestStatusScenario() {
	issue := s.create(models.Infrastructure)

	updated, err := s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.InProgress)
	s.Require().NoError(err)
	s.Equal(models.InProgress, updated.Status)

	_, err = s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.Pending)
	s.ErrorIs(err, apperr.ErrInvalidTransition)

	current, err := s.service.Get(s.ctx, issue.ID)
	s.Require().NoError(err)
	s.Equal(models.InProgress, current.Status)
}

func (s *IssueServiceSuite) TestStatusRules() {
	s.Run("pending may skip to resolved", func() {
		issue := s.create(models.Safety)
		updated, err := s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.Resolved)
		s.Require().NoError(err)
		s.Equal(models.Resolved, updated.Status)
	})

	s.Run("same status is an invalid transition", func() {
		issue := s.create(models.Safety)
		_, err := s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.Pending)
		s.ErrorIs(err, apperr.ErrInvalidTransition)
	})

	s.Run("non-author is rejected before the transition is judged", func() {
		issue := s.create(models.Safety)
		_, err := s.service.UpdateStatus(s.ctx, s.other.ID, issue.ID, models.Pending)
		s.ErrorIs(err, apperr.ErrNotAuthorized)
	})

	s.Run("anonymous is rejected first", func() {
		_, err := s.service.UpdateStatus(s.ctx, primitive.NilObjectID, primitive.NewObjectID(), models.Resolved)
		s.ErrorIs(err, apperr.ErrAuthRequired)
	})

	s.Run("missing issue", func() {
		_, err := s.service.UpdateStatus(s.ctx, s.author.ID, primitive.NewObjectID(), models.Resolved)
		s.ErrorIs(err, apperr.ErrIssueNotFound)
	})
}

func (s *IssueServiceSuite) TestConcurrentDuplicateTransition() {
	issue := s.create(models.Safety)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.InProgress)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.ErrorIs(err, apperr.ErrInvalidTransition)
		}
	}
	s.Equal(1, succeeded)
}

func (s *IssueServiceSuite) TestVoteScenario() {
	issue := s.create(models.Environment)

	updated, err := s.service.Vote(s.ctx, s.other.ID, issue.ID)
	s.Require().NoError(err)
	s.Equal(1, updated.Votes)
	s.True(updated.HasVoted(s.other.ID))

	_, err = s.service.Vote(s.ctx, s.other.ID, issue.ID)
	s.ErrorIs(err, apperr.ErrAlreadyVoted)

	current, err := s.service.Get(s.ctx, issue.ID)
	s.Require().NoError(err)
	s.Equal(1, current.Votes)
	s.True(current.LedgerConsistent())
}

func (s *IssueServiceSuite) TestVoteRules() {
	issue := s.create(models.Environment)

	_, err := s.service.Vote(s.ctx, primitive.NilObjectID, issue.ID)
	s.ErrorIs(err, apperr.ErrAuthRequired)

	_, err = s.service.Vote(s.ctx, s.other.ID, primitive.NewObjectID())
	s.ErrorIs(err, apperr.ErrIssueNotFound)

	// Votes stay open after the issue advances.
	_, err = s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.Resolved)
	s.Require().NoError(err)
	updated, err := s.service.Vote(s.ctx, s.author.ID, issue.ID)
	s.Require().NoError(err)
	s.Equal(1, updated.Votes)
}

func (s *IssueServiceSuite) TestEditAndDelete() {
	title := "Renamed"

	s.Run("author edits while pending", func() {
		issue := s.create(models.Safety)
		updated, err := s.service.Update(s.ctx, s.author.ID, issue.ID, models.IssuePatch{Title: &title})
		s.Require().NoError(err)
		s.Equal("Renamed", updated.Title)
		s.Equal(issue.Description, updated.Description)
	})

	s.Run("non-author is rejected regardless of status", func() {
		issue := s.create(models.Safety)
		_, err := s.service.Update(s.ctx, s.other.ID, issue.ID, models.IssuePatch{Title: &title})
		s.ErrorIs(err, apperr.ErrNotAuthorized)
		s.ErrorIs(s.service.Delete(s.ctx, s.other.ID, issue.ID), apperr.ErrNotAuthorized)

		_, err = s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.Resolved)
		s.Require().NoError(err)
		_, err = s.service.Update(s.ctx, s.other.ID, issue.ID, models.IssuePatch{Title: &title})
		s.ErrorIs(err, apperr.ErrNotAuthorized)
	})

	s.Run("author is rejected once past pending", func() {
		issue := s.create(models.Safety)
		_, err := s.service.UpdateStatus(s.ctx, s.author.ID, issue.ID, models.InProgress)
		s.Require().NoError(err)

		_, err = s.service.Update(s.ctx, s.author.ID, issue.ID, models.IssuePatch{Title: &title})
		s.ErrorIs(err, apperr.ErrNotPending)
		s.ErrorIs(s.service.Delete(s.ctx, s.author.ID, issue.ID), apperr.ErrNotPending)
	})

	s.Run("empty title is a validation error", func() {
		issue := s.create(models.Safety)
		blank := " "
		_, err := s.service.Update(s.ctx, s.author.ID, issue.ID, models.IssuePatch{Title: &blank})
		s.Equal(apperr.Validation, apperr.KindOf(err))
		_, err = s.service.Update(s.ctx, s.author.ID, issue.ID, models.IssuePatch{})
		s.Equal(apperr.Validation, apperr.KindOf(err))
	})

	s.Run("author deletes while pending", func() {
		issue := s.create(models.Safety)
		s.Require().NoError(s.service.Delete(s.ctx, s.author.ID, issue.ID))
		_, err := s.service.Get(s.ctx, issue.ID)
		s.ErrorIs(err, apperr.ErrIssueNotFound)
	})
}

func (s *IssueServiceSuite) TestListPaging() {
	for i := 0; i < 6; i++ {
		s.create(models.Safety)
	}
	s.create(models.Environment)

	page, err := s.service.List(s.ctx, store.ListQuery{Page: 1, Limit: 6, Filter: models.IssueFilter{Category: models.Safety}})
	s.Require().NoError(err)
	s.Len(page.Items, 6)
	s.Equal(int64(6), page.Total)
	s.Equal(1, page.TotalPages)
	s.False(page.HasMore, "a page that exactly fills the limit is still the last one")
	for _, item := range page.Items {
		s.Equal(models.Safety, item.Category)
	}

	page, err = s.service.List(s.ctx, store.ListQuery{Page: 1, Limit: 6})
	s.Require().NoError(err)
	s.True(page.HasMore)
	s.Equal(2, page.TotalPages)

	_, err = s.service.List(s.ctx, store.ListQuery{Filter: models.IssueFilter{Category: "Road"}})
	s.Equal(apperr.Validation, apperr.KindOf(err))
}

func (s *IssueServiceSuite) TestListByCreator() {
	s.create(models.Safety)
	s.create(models.Other)

	mine, err := s.service.ListByCreator(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.Len(mine, 2)

	theirs, err := s.service.ListByCreator(s.ctx, s.other.ID)
	s.Require().NoError(err)
	s.Empty(theirs)

	_, err = s.service.ListByCreator(s.ctx, primitive.NilObjectID)
	s.True(errors.Is(err, apperr.ErrAuthRequired))
}
