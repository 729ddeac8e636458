// Package history journals completed embed-ready notification attempts in
// SQLite.
//
// Every attempt is recorded once with its outcome, HTTP status, and latency so
// operators can answer "did the web application hear about datasource X?"
// after the fact. The journal is append-only: nothing here re-sends or
// schedules notifications.
package history
