package models

import (
	"civicsync/apperr"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The checks below run in a fixed order and the first failure wins:
// authentication, then authorship, then the state rule.

// AuthorizeTransition decides whether actor may move issue to target.
func AuthorizeTransition(issue *Issue, actor primitive.ObjectID, target IssueStatus) error {
	if actor.IsZero() {
		return apperr.ErrAuthRequired
	}
	if !issue.IsAuthor(actor) {
		return apperr.ErrNotAuthorized
	}
	if !issue.Status.CanTransitionTo(target) {
		return apperr.ErrInvalidTransition
	}
	return nil
}

// AuthorizeChange decides whether actor may edit or delete issue.
func AuthorizeChange(issue *Issue, actor primitive.ObjectID) error {
	if actor.IsZero() {
		return apperr.ErrAuthRequired
	}
	if !issue.IsAuthor(actor) {
		return apperr.ErrNotAuthorized
	}
	if !issue.Status.Editable() {
		return apperr.ErrNotPending
	}
	return nil
}

// AuthorizeVote decides whether actor may vote on issue.
func AuthorizeVote(issue *Issue, actor primitive.ObjectID) error {
	if actor.IsZero() {
		return apperr.ErrAuthRequired
	}
	if issue.HasVoted(actor) {
		return apperr.ErrAlreadyVoted
	}
	return nil
}
