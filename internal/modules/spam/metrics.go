package spam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var spamChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_spam_checks_total",
	Help: "Spam check provider calls by outcome (ham, spam, indecisive, skipped, error)",
}, []string{"provider", "outcome"})

var spamCheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderation_spam_check_duration_seconds",
	Help:    "Time spent in one spam check provider, gate included",
	Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
}, []string{"provider"})
