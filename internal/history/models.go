package history

import "time"

// Outcome classifies how a notification attempt ended.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeStatusError    Outcome = "status_error"
)

// Attempt is a single journaled notification.
type Attempt struct {
	ID           int64
	DatasourceID string
	RequestID    string
	URL          string
	Outcome      Outcome
	StatusCode   int
	Error        string
	StartedAt    time.Time
	Duration     time.Duration
}

// Succeeded reports whether the web application acknowledged the attempt.
func (a Attempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}
