package models

import (
	"errors"
	"testing"

	"civicsync/apperr"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAuthorizeTransitionOrder(t *testing.T) {
	author := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	tests := []struct {
		name   string
		status IssueStatus
		actor  primitive.ObjectID
		target IssueStatus
		want   error
	}{
		{"anonymous beats everything", Resolved, primitive.NilObjectID, Pending, apperr.ErrAuthRequired},
		{"stranger beats invalid transition", Resolved, stranger, Pending, apperr.ErrNotAuthorized},
		{"stranger on valid transition", Pending, stranger, InProgress, apperr.ErrNotAuthorized},
		{"backward", InProgress, author, Pending, apperr.ErrInvalidTransition},
		{"same status", Pending, author, Pending, apperr.ErrInvalidTransition},
		{"out of terminal", Resolved, author, InProgress, apperr.ErrInvalidTransition},
		{"unknown target", Pending, author, "Closed", apperr.ErrInvalidTransition},
		{"forward", Pending, author, InProgress, nil},
		{"skip to resolved", Pending, author, Resolved, nil},
		{"finish", InProgress, author, Resolved, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := &Issue{Status: tt.status, CreatedBy: CreatorRef(author)}
			err := AuthorizeTransition(issue, tt.actor, tt.target)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAuthorizeChange(t *testing.T) {
	author := primitive.NewObjectID()

	for _, status := range []IssueStatus{InProgress, Resolved} {
		issue := &Issue{Status: status, CreatedBy: CreatorRef(author)}
		assert.ErrorIs(t, AuthorizeChange(issue, author), apperr.ErrNotPending)
		assert.ErrorIs(t, AuthorizeChange(issue, primitive.NewObjectID()), apperr.ErrNotAuthorized)
	}

	pending := &Issue{Status: Pending, CreatedBy: CreatorRef(author)}
	assert.NoError(t, AuthorizeChange(pending, author))
	assert.ErrorIs(t, AuthorizeChange(pending, primitive.NilObjectID), apperr.ErrAuthRequired)
}

func TestAuthorizeVote(t *testing.T) {
	voter := primitive.NewObjectID()
	issue := &Issue{VotedBy: []primitive.ObjectID{voter}, Votes: 1}

	assert.ErrorIs(t, AuthorizeVote(issue, voter), apperr.ErrAlreadyVoted)
	assert.ErrorIs(t, AuthorizeVote(issue, primitive.NilObjectID), apperr.ErrAuthRequired)
	assert.NoError(t, AuthorizeVote(issue, primitive.NewObjectID()))
}
