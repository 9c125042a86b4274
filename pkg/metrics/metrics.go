package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConflictChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "conflict_checks_total", Help: "Conflict checks by result (conflict|clean)."},
		[]string{"result"},
	)
	NoteUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "note_updates_total", Help: "Note updates by mode (checked|forced) and outcome."},
		[]string{"mode", "outcome"},
	)
	TagResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "tag_resolutions_total", Help: "Tag name resolutions by result."},
		[]string{"result"},
	)
	DraftsArchived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "conflict_drafts_archived_total", Help: "Rejected edits archived for manual resolution by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gonotes", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ConflictChecks, NoteUpdates, TagResolutions, DraftsArchived)
	reg.MustRegister(RateLimitAllowed, RateLimitRejected)
}
