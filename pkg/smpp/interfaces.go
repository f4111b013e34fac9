package smpp

import (
	"encoding/json"
	"time"
)

// Logger is the structured, leveled logging interface the session engine
// and the demonstration harness accept. A nil Logger disables logging
// entirely; callers are not required to supply one.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithFields(fields map[string]interface{}) Logger
}

// MetricsCollector is the optional metrics sink for the session engine. A
// nil MetricsCollector disables metrics, the same contract as Logger.
type MetricsCollector interface {
	IncPDUSent(commandName string)
	IncPDUReceived(commandName string)
	ObserveRoundTrip(commandName string, d time.Duration)
	SetSessionState(state string)
	IncBindSuccess()
	IncBindFailure()
}

// Duration is a time.Duration that marshals to and from JSON as a string
// like "30s" rather than an integer count of nanoseconds, for hand-editable
// configuration files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
