package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackValidation(t *testing.T) {
	before := testutil.ToFloat64(scanValidations.WithLabelValues("accepted"))
	TrackValidation("accepted", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(scanValidations.WithLabelValues("accepted")))
}

func TestTrackLedgerConflict(t *testing.T) {
	before := testutil.ToFloat64(ledgerConflicts)
	TrackLedgerConflict()
	TrackLedgerConflict()
	assert.Equal(t, before+2, testutil.ToFloat64(ledgerConflicts))
}

func TestTrackInvitationAndPublishFailure(t *testing.T) {
	TrackInvitation("sent")
	TrackPublishFailure("guest.checked_in")
	assert.GreaterOrEqual(t, testutil.ToFloat64(invitationsDispatched.WithLabelValues("sent")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(publishFailures.WithLabelValues("guest.checked_in")), 1.0)
}
