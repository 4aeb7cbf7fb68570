package leave

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leave",
		Subsystem: "requests",
		Name:      "submissions_total",
		Help:      "Leave request submissions broken down by outcome.",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leave",
		Subsystem: "requests",
		Name:      "transitions_total",
		Help:      "Approval workflow actions broken down by action and outcome.",
	}, []string{"action", "outcome"})

	debitedDaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leave",
		Subsystem: "ledger",
		Name:      "debited_days_total",
		Help:      "Days permanently debited or recorded as loss of pay on approval.",
	}, []string{"category"})
)

func recordSubmission(err error) {
	submissionsTotal.WithLabelValues(outcomeOf(err)).Inc()
}

func recordTransition(action Action, err error) {
	transitionsTotal.WithLabelValues(string(action), outcomeOf(err)).Inc()
}

func recordBreakup(b Breakup) {
	debitedDaysTotal.WithLabelValues("cpl").Add(float64(b.CPL))
	debitedDaysTotal.WithLabelValues("sl").Add(float64(b.SL))
	debitedDaysTotal.WithLabelValues("lop").Add(float64(b.LOP))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOverlap):
		return "overlap"
	case errors.Is(err, ErrInsufficientCPL), errors.Is(err, ErrInsufficientSL), errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrAllocationExceedsTotal), errors.Is(err, ErrInvalidAllocation):
		return "invalid_allocation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotTeamLead):
		return "forbidden"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
