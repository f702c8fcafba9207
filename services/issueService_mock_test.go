package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/store"
	"civicsync/store/mocks"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

// =============================================================================
// Collaborator interactions
// =============================================================================
// These pin down which store calls happen (and which must not) for rejected
// and racing mutations.

type IssueServiceMockSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	issues  *mocks.MockIssueStore
	users   *mocks.MockUserStore
	service *IssueService
	ctx     context.Context
	author  primitive.ObjectID
}

func TestIssueServiceMockSuite(t *testing.T) {
	suite.Run(t, new(IssueServiceMockSuite))
}

func (s *IssueServiceMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.issues = mocks.NewMockIssueStore(s.ctrl)
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.ctx = context.Background()
	s.author = primitive.NewObjectID()
	s.service, _ = NewIssueService(s.issues, s.users,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *IssueServiceMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IssueServiceMockSuite) pending(id primitive.ObjectID) *models.Issue {
	return &models.Issue{ID: id, Status: models.Pending, CreatedBy: models.CreatorRef(s.author), VotedBy: []primitive.ObjectID{}}
}

func (s *IssueServiceMockSuite) TestValidationNeverReachesStore() {
	// No EXPECT calls: any store access fails the test.
	_, err := s.service.Create(s.ctx, s.author, models.NewIssue{Description: "d", Category: models.Other})
	s.Equal(apperr.Validation, apperr.KindOf(err))
}

func (s *IssueServiceMockSuite) TestAnonymousNeverReachesStore() {
	id := primitive.NewObjectID()
	_, err := s.service.Vote(s.ctx, primitive.NilObjectID, id)
	s.ErrorIs(err, apperr.ErrAuthRequired)
	_, err = s.service.UpdateStatus(s.ctx, primitive.NilObjectID, id, models.Resolved)
	s.ErrorIs(err, apperr.ErrAuthRequired)
	s.ErrorIs(s.service.Delete(s.ctx, primitive.NilObjectID, id), apperr.ErrAuthRequired)
}

func (s *IssueServiceMockSuite) TestAlreadyVotedSkipsLedgerWrite() {
	id := primitive.NewObjectID()
	voter := primitive.NewObjectID()
	issue := s.pending(id)
	issue.VotedBy = []primitive.ObjectID{voter}
	issue.Votes = 1

	s.issues.EXPECT().Get(gomock.Any(), id).Return(issue, nil)

	_, err := s.service.Vote(s.ctx, voter, id)
	s.ErrorIs(err, apperr.ErrAlreadyVoted)
}

func (s *IssueServiceMockSuite) TestVoteLosingRaceIsAlreadyVoted() {
	id := primitive.NewObjectID()
	voter := primitive.NewObjectID()

	s.issues.EXPECT().Get(gomock.Any(), id).Return(s.pending(id), nil)
	s.issues.EXPECT().AddVote(gomock.Any(), id, voter).Return(nil, store.ErrConflict)

	_, err := s.service.Vote(s.ctx, voter, id)
	s.ErrorIs(err, apperr.ErrAlreadyVoted)
}

func (s *IssueServiceMockSuite) TestTransitionRetriesAfterRace() {
	id := primitive.NewObjectID()
	moved := s.pending(id)
	moved.Status = models.InProgress
	resolved := s.pending(id)
	resolved.Status = models.Resolved

	gomock.InOrder(
		s.issues.EXPECT().Get(gomock.Any(), id).Return(s.pending(id), nil),
		s.issues.EXPECT().SetStatus(gomock.Any(), id, models.Pending, models.Resolved, gomock.Any()).Return(nil, store.ErrConflict),
		s.issues.EXPECT().Get(gomock.Any(), id).Return(moved, nil),
		s.issues.EXPECT().SetStatus(gomock.Any(), id, models.InProgress, models.Resolved, gomock.Any()).Return(resolved, nil),
	)
	s.users.EXPECT().FindByIDs(gomock.Any(), []primitive.ObjectID{s.author}).Return(map[primitive.ObjectID]models.User{}, nil)

	out, err := s.service.UpdateStatus(s.ctx, s.author, id, models.Resolved)
	s.Require().NoError(err)
	s.Equal(models.Resolved, out.Status)
}

func (s *IssueServiceMockSuite) TestEditLosingRaceReportsNotPending() {
	id := primitive.NewObjectID()
	title := "New"
	advanced := s.pending(id)
	advanced.Status = models.InProgress

	gomock.InOrder(
		s.issues.EXPECT().Get(gomock.Any(), id).Return(s.pending(id), nil),
		s.issues.EXPECT().Update(gomock.Any(), id, s.author, gomock.Any(), gomock.Any()).Return(nil, store.ErrConflict),
		s.issues.EXPECT().Get(gomock.Any(), id).Return(advanced, nil),
	)

	_, err := s.service.Update(s.ctx, s.author, id, models.IssuePatch{Title: &title})
	s.ErrorIs(err, apperr.ErrNotPending)
}

func (s *IssueServiceMockSuite) TestStoreFailureIsInternal() {
	id := primitive.NewObjectID()
	s.issues.EXPECT().Get(gomock.Any(), id).Return(nil, errors.New("connection reset"))

	_, err := s.service.Get(s.ctx, id)
	s.Equal(apperr.Internal, apperr.KindOf(err))
}

func (s *IssueServiceMockSuite) TestCreatorLookupFailureKeepsReference() {
	id := primitive.NewObjectID()
	s.issues.EXPECT().Get(gomock.Any(), id).Return(s.pending(id), nil)
	s.users.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	out, err := s.service.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.CreatorRefKind, out.CreatedBy.Kind())
	s.Equal(s.author, out.CreatedBy.ID())
}
