package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the issue lifecycle counters.
type Metrics struct {
	IssuesCreated     prometheus.Counter
	VotesCast         prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	MutationsRejected *prometheus.CounterVec
}

// New registers the counters on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IssuesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_issues_created_total",
			Help: "Total number of issues reported",
		}),
		VotesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_votes_cast_total",
			Help: "Total number of accepted votes",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsync_status_transitions_total",
			Help: "Accepted status transitions by from and to status",
		}, []string{"from", "to"}),
		MutationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsync_mutations_rejected_total",
			Help: "Rejected mutations by operation and error kind",
		}, []string{"operation", "kind"}),
	}
}

func (m *Metrics) IncrementIssuesCreated() {
	if m == nil {
		return
	}
	m.IssuesCreated.Inc()
}

func (m *Metrics) IncrementVotesCast() {
	if m == nil {
		return
	}
	m.VotesCast.Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRejection(operation, kind string) {
	if m == nil {
		return
	}
	m.MutationsRejected.WithLabelValues(operation, kind).Inc()
}
