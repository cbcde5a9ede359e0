package coordinator

import "time"

// Recorder receives coordinator measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	ObservePoll(vin, result string, duration time.Duration)
	ObserveFetchAttempt(vin, payload string, err error)
	ObserveGeneric(vin, payload string)
	SetInterval(vin string, interval time.Duration, mode string)
	SetActionActive(vin string, active bool)
}

type nopRecorder struct{}

func (nopRecorder) ObservePoll(string, string, time.Duration) {}
func (nopRecorder) ObserveFetchAttempt(string, string, error) {}
func (nopRecorder) ObserveGeneric(string, string)             {}
func (nopRecorder) SetInterval(string, time.Duration, string) {}
func (nopRecorder) SetActionActive(string, bool)              {}
