// Package dispatch is the caller side of embed-ready notifications.
//
// A Dispatcher wraps a notifications.Service with the concerns the notifier
// itself leaves to its caller: a correlation id per call, structured logging
// of the outcome, Prometheus observations, and an entry in the attempt
// journal. NotifyAll fans several datasource ids out concurrently; each call
// is independent and failures are reported, never retried.
package dispatch
