package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveNonceRetryIncrementsCounter(t *testing.T) {
	r := New()
	r.ObserveNonceRetry()
	r.ObserveNonceRetry()

	if got := testutil.ToFloat64(r.nonceRetries); got != 2 {
		t.Fatalf("expected 2 retries, got %v", got)
	}
}

func TestObserveValidationFailurePartitionsByKind(t *testing.T) {
	r := New()
	r.ObserveValidationFailure("Expired")
	r.ObserveValidationFailure("Expired")
	r.ObserveValidationFailure("InsufficientBalance")

	if got := testutil.ToFloat64(r.validationFailures.WithLabelValues("Expired")); got != 2 {
		t.Fatalf("expected 2 Expired failures, got %v", got)
	}
	if got := testutil.ToFloat64(r.validationFailures.WithLabelValues("InsufficientBalance")); got != 1 {
		t.Fatalf("expected 1 InsufficientBalance failure, got %v", got)
	}
}

func TestTimerRecordsAdmissionOutcome(t *testing.T) {
	r := New()
	stop := r.Timer()
	time.Sleep(time.Millisecond)
	stop("accepted")

	if got := testutil.ToFloat64(r.admissionsTotal.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("expected 1 accepted admission, got %v", got)
	}
}
