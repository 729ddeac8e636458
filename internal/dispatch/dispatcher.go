package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"embednotify/internal/history"
	"embednotify/internal/logging"
	"embednotify/internal/notifications"
)

const defaultConcurrency = 8

// Journal persists attempt outcomes.
type Journal interface {
	Record(ctx context.Context, attempt history.Attempt) (int64, error)
}

// Sender is a notifications.Service that also reports the URL it posted to.
type Sender interface {
	Send(ctx context.Context, datasourceID string) (string, error)
}

// Observer receives outcome metrics.
type Observer interface {
	Observe(outcome string, elapsed time.Duration)
}

// Result describes one delivered (or failed) notification.
type Result struct {
	DatasourceID string
	RequestID    string
	Outcome      history.Outcome
	StatusCode   int
	Duration     time.Duration
	Err          error
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for outcome lines.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithJournal records every attempt in j.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithHosts names the host source used to journal a URL when the service
// reports none itself.
func WithHosts(hosts notifications.HostSource) Option {
	return func(d *Dispatcher) {
		d.hosts = hosts
	}
}

// WithConcurrency bounds NotifyAll's in-flight requests.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// Dispatcher wraps a notifications.Service with logging, metrics, and history.
type Dispatcher struct {
	svc         notifications.Service
	hosts       notifications.HostSource
	logger      *slog.Logger
	journal     Journal
	observer    Observer
	concurrency int
	now         func() time.Time
}

// New builds a Dispatcher around svc.
func New(svc notifications.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:         svc,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "dispatch")
	return d
}

// NotifyEmbedReady delivers one notification and returns its error, so a
// Dispatcher can stand in wherever a notifications.Service is expected.
func (d *Dispatcher) NotifyEmbedReady(ctx context.Context, datasourceID string) error {
	return d.Deliver(ctx, datasourceID).Err
}

// Deliver sends one notification and reports its full outcome.
func (d *Dispatcher) Deliver(ctx context.Context, datasourceID string) Result {
	requestID, ok := logging.CorrelationIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, requestID)
	}
	ctx = logging.WithDatasourceID(ctx, datasourceID)

	started := d.now()
	url, err := d.send(ctx, datasourceID)
	elapsed := d.now().Sub(started)

	outcome, status := Classify(err)
	result := Result{
		DatasourceID: datasourceID,
		RequestID:    requestID,
		Outcome:      outcome,
		StatusCode:   status,
		Duration:     elapsed,
		Err:          err,
	}
	if url == "" && d.hosts != nil {
		url = notifications.EmbedReadyURL(d.hosts.WebappHost())
	}

	logger := logging.WithContext(ctx, d.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldOutcome, string(outcome)),
		logging.Duration("elapsed", elapsed),
	}
	if status != 0 {
		attrs = append(attrs, logging.Int("status_code", status))
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
		logger.Warn("embed-ready notification failed", logging.Args(attrs...)...)
	} else {
		logger.Info("embed-ready notification delivered", logging.Args(attrs...)...)
	}

	if d.observer != nil {
		d.observer.Observe(string(outcome), elapsed)
	}

	if d.journal != nil {
		attempt := history.Attempt{
			DatasourceID: datasourceID,
			RequestID:    requestID,
			URL:          url,
			Outcome:      outcome,
			StatusCode:   status,
			StartedAt:    started,
			Duration:     elapsed,
		}
		if err != nil {
			attempt.Error = err.Error()
		}
		// The caller's context may already be cancelled; the journal entry
		// still describes what happened.
		if _, recErr := d.journal.Record(context.WithoutCancel(ctx), attempt); recErr != nil {
			logger.Warn("record notification attempt", logging.Error(recErr))
		}
	}

	return result
}

// NotifyAll delivers one notification per id concurrently and returns the
// results in input order. A failure never cancels its siblings.
func (d *Dispatcher) NotifyAll(ctx context.Context, datasourceIDs []string) []Result {
	results := make([]Result, len(datasourceIDs))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range datasourceIDs {
		g.Go(func() error {
			results[i] = d.Deliver(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Classify maps a notifier error to its journal outcome and HTTP status.
func Classify(err error) (history.Outcome, int) {
	if err == nil {
		return history.OutcomeSuccess, 0
	}
	var statusErr *notifications.StatusError
	if errors.As(err, &statusErr) {
		return history.OutcomeStatusError, statusErr.StatusCode
	}
	return history.OutcomeTransportError, 0
}

// Failed counts results carrying an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// send prefers a Sender so the journaled URL is the one actually posted.
func (d *Dispatcher) send(ctx context.Context, datasourceID string) (string, error) {
	if sender, ok := d.svc.(Sender); ok {
		return sender.Send(ctx, datasourceID)
	}
	err := d.svc.NotifyEmbedReady(ctx, datasourceID)
	return urlFromError(err), err
}

func urlFromError(err error) string {
	var statusErr *notifications.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.URL
	}
	var transportErr *notifications.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.URL
	}
	return ""
}
