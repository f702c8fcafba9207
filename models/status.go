package models

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "Pending"
	InProgress IssueStatus = "In Progress"
	Resolved   IssueStatus = "Resolved"
)

// Statuses lists every status in lifecycle order.
var Statuses = []IssueStatus{Pending, InProgress, Resolved}

var statusRank = map[IssueStatus]int{
	Pending:    0,
	InProgress: 1,
	Resolved:   2,
}

func (s IssueStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether target is strictly ahead of s.
// Pending may skip straight to Resolved; nothing moves backward and
// requesting the current status is not a transition.
func (s IssueStatus) CanTransitionTo(target IssueStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to > from
}

// Terminal reports whether no further transition exists.
func (s IssueStatus) Terminal() bool {
	return s == Resolved
}

// Editable reports whether title, description and the rest may still change.
func (s IssueStatus) Editable() bool {
	return s == Pending
}

// NextStatuses returns the statuses reachable from s.
func (s IssueStatus) NextStatuses() []IssueStatus {
	var next []IssueStatus
	for _, candidate := range Statuses {
		if s.CanTransitionTo(candidate) {
			next = append(next, candidate)
		}
	}
	return next
}
