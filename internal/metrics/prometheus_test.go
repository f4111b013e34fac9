package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	pmc := NewPrometheusMetricsCollector(0)

	pmc.IncPDUSent("submit_sm")
	pmc.IncPDUSent("submit_sm")
	pmc.IncPDUReceived("deliver_sm")
	pmc.IncBindSuccess()
	pmc.IncBindFailure()
	pmc.ObserveRoundTrip("bind_transceiver", 25*time.Millisecond)

	if got := testutil.ToFloat64(pmc.pduSentTotal.WithLabelValues("submit_sm")); got != 2 {
		t.Errorf("pdu_sent_total{submit_sm} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pmc.pduReceivedTotal.WithLabelValues("deliver_sm")); got != 1 {
		t.Errorf("pdu_received_total{deliver_sm} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pmc.bindSuccessTotal); got != 1 {
		t.Errorf("bind_success_total = %v, want 1", got)
	}
}

func TestSessionStateGauge(t *testing.T) {
	pmc := NewPrometheusMetricsCollector(0)

	pmc.SetSessionState("bound_trx")
	if got := testutil.ToFloat64(pmc.sessionState.WithLabelValues("bound_trx")); got != 1 {
		t.Errorf("state gauge bound_trx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pmc.sessionState.WithLabelValues("closed")); got != 0 {
		t.Errorf("state gauge closed = %v, want 0", got)
	}

	pmc.SetSessionState("closed")
	if got := testutil.ToFloat64(pmc.sessionState.WithLabelValues("bound_trx")); got != 0 {
		t.Errorf("state gauge bound_trx after transition = %v, want 0", got)
	}
}
