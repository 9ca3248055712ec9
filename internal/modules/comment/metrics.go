package comment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_comment_transitions_total",
	Help: "Comment approval transitions (submitted, auto_approved, approved, unapproved)",
}, []string{"transition"})

var pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "moderation_pending_comments",
	Help: "Unapproved comments waiting in the moderation queue",
})
