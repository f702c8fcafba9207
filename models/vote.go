package models

import (
	"civicsync/apperr"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HasVoted reports whether principal already appears in the issue's ledger.
func (i *Issue) HasVoted(principal primitive.ObjectID) bool {
	for _, voter := range i.VotedBy {
		if voter == principal {
			return true
		}
	}
	return false
}

// RecordVote adds principal to the ledger and bumps Votes in the same step.
// A vote is permanent: a second vote from the same principal is rejected.
func (i *Issue) RecordVote(principal primitive.ObjectID) error {
	if principal.IsZero() {
		return apperr.ErrAuthRequired
	}
	if i.HasVoted(principal) {
		return apperr.ErrAlreadyVoted
	}
	i.VotedBy = append(i.VotedBy, principal)
	i.Votes = len(i.VotedBy)
	return nil
}

// LedgerConsistent checks votes == |votedBy| with no duplicate voters.
func (i *Issue) LedgerConsistent() bool {
	if i.Votes != len(i.VotedBy) {
		return false
	}
	seen := make(map[primitive.ObjectID]struct{}, len(i.VotedBy))
	for _, voter := range i.VotedBy {
		if _, dup := seen[voter]; dup {
			return false
		}
		seen[voter] = struct{}{}
	}
	return true
}
