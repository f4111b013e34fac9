package errorrecovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

func fastConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection", &smpp.ConnectionError{Op: "dial", Err: errors.New("refused")}, true},
		{"throttled", &smpp.DecodingError{CommandID: smpp.CommandSubmitSMResp, Status: smpp.StatusThrottled}, true},
		{"queue full", &smpp.DecodingError{CommandID: smpp.CommandSubmitSMResp, Status: smpp.StatusMsgQFul}, true},
		{"bad dest", &smpp.DecodingError{CommandID: smpp.CommandSubmitSMResp, Status: smpp.StatusInvDstAdr}, false},
		{"parse failure", &smpp.DecodingError{Err: errors.New("short frame")}, false},
		{"state", &smpp.StateError{Op: "submit_sm"}, false},
		{"encoding", &smpp.EncodingError{Err: errors.New("too long")}, false},
		{"plain", errors.New("whatever"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return &smpp.ConnectionError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	if result.Error != nil {
		t.Fatalf("Retry = %v", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := &smpp.StateError{Op: "submit_sm"}
	result := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		return permanent
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry of a state error)", attempts)
	}
	var se *smpp.StateError
	if !errors.As(result.Error, &se) {
		t.Errorf("result.Error = %v", result.Error)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	result := Retry(context.Background(), fastConfig(), func() error {
		attempts++
		return &smpp.ConnectionError{Op: "dial", Err: errors.New("refused")}
	})
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", attempts)
	}
	if result.Error == nil {
		t.Error("exhausted retry reported success")
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Retry(ctx, fastConfig(), func() error {
		t.Error("fn ran under a canceled context")
		return nil
	})
	if result.Error != context.Canceled {
		t.Errorf("result.Error = %v, want context.Canceled", result.Error)
	}
}
