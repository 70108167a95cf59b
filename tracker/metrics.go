package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts tracker activity.
type Metrics struct {
	UsersRegistered   prometheus.Counter
	ExercisesRecorded prometheus.Counter
	WriteConflicts    prometheus.Counter
}

// NewMetrics creates the tracker counters on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "exercisetracker",
			Name:      "users_registered_total",
			Help:      "Number of users registered.",
		}),
		ExercisesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "exercisetracker",
			Name:      "exercises_recorded_total",
			Help:      "Number of exercise entries appended to a log.",
		}),
		WriteConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "exercisetracker",
			Name:      "log_write_conflicts_total",
			Help:      "Number of log appends retried after losing a write race.",
		}),
	}
}
