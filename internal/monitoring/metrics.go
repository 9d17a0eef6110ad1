package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_validations_total",
			Help: "Validate-scan requests by outcome",
		},
		[]string{"result"},
	)

	ledgerConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_ledger_conflicts_total",
			Help: "Compare-and-swap attempts on a guest row that lost to a concurrent scan",
		},
	)

	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_validation_duration_seconds",
			Help:    "Latency of the validate-scan decision",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	invitationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitations_dispatched_total",
			Help: "Invitation send attempts by status",
		},
		[]string{"status"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_failures_total",
			Help: "Broker publish failures per queue",
		},
		[]string{"queue"},
	)
)

// TrackValidation records one validate-scan decision.
func TrackValidation(result string, took time.Duration) {
	scanValidations.WithLabelValues(result).Inc()
	validationDuration.Observe(took.Seconds())
}

// TrackLedgerConflict counts a lost compare-and-swap.
func TrackLedgerConflict() { ledgerConflicts.Inc() }

// TrackInvitation counts one invitation dispatch.
func TrackInvitation(status string) { invitationsDispatched.WithLabelValues(status).Inc() }

// TrackPublishFailure counts a message that could not be handed to the broker.
func TrackPublishFailure(queue string) { publishFailures.WithLabelValues(queue).Inc() }
