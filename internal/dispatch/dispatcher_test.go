package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"embednotify/internal/config"
	"embednotify/internal/dispatch"
	"embednotify/internal/history"
	"embednotify/internal/logging"
	"embednotify/internal/metrics"
	"embednotify/internal/notifications"
	"embednotify/internal/testsupport"
)

type fakeService struct {
	mu    sync.Mutex
	calls []string
	ids   []string
	err   func(id string) error
}

func (f *fakeService) NotifyEmbedReady(ctx context.Context, datasourceID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, datasourceID)
	if rid, ok := logging.CorrelationIDFromContext(ctx); ok {
		f.ids = append(f.ids, rid)
	}
	f.mu.Unlock()
	if f.err == nil {
		return nil
	}
	return f.err(datasourceID)
}

type memoryJournal struct {
	mu       sync.Mutex
	attempts []history.Attempt
	err      error
}

func (m *memoryJournal) Record(_ context.Context, attempt history.Attempt) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.attempts = append(m.attempts, attempt)
	return int64(len(m.attempts)), nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantOut    history.Outcome
		wantStatus int
	}{
		{name: "nil", err: nil, wantOut: history.OutcomeSuccess},
		{name: "status", err: &notifications.StatusError{StatusCode: 404}, wantOut: history.OutcomeStatusError, wantStatus: 404},
		{name: "wrapped status", err: fmt.Errorf("ctx: %w", &notifications.StatusError{StatusCode: 500}), wantOut: history.OutcomeStatusError, wantStatus: 500},
		{name: "transport", err: &notifications.TransportError{Err: errors.New("refused")}, wantOut: history.OutcomeTransportError},
		{name: "other", err: errors.New("boom"), wantOut: history.OutcomeTransportError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, status := dispatch.Classify(tc.err)
			if out != tc.wantOut || status != tc.wantStatus {
				t.Fatalf("Classify(%v) = (%s, %d), want (%s, %d)", tc.err, out, status, tc.wantOut, tc.wantStatus)
			}
		})
	}
}

func TestDeliverRecordsSuccess(t *testing.T) {
	svc := &fakeService{}
	journal := &memoryJournal{}
	rec := metrics.NewRecorder()
	hosts := notifications.HostFunc(func() string { return "webapp:3000" })

	d := dispatch.New(svc, dispatch.WithJournal(journal), dispatch.WithObserver(rec), dispatch.WithHosts(hosts))
	result := d.Deliver(context.Background(), "ds-1")

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Outcome != history.OutcomeSuccess {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
	if result.RequestID == "" {
		t.Fatal("expected generated request id")
	}
	if len(svc.ids) != 1 || svc.ids[0] != result.RequestID {
		t.Fatalf("expected correlation id passed to service, got %v", svc.ids)
	}

	if len(journal.attempts) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(journal.attempts))
	}
	attempt := journal.attempts[0]
	if attempt.URL != "http://webapp:3000/webhook/embed-successful" {
		t.Fatalf("unexpected url: %q", attempt.URL)
	}
	if attempt.DatasourceID != "ds-1" || attempt.RequestID != result.RequestID {
		t.Fatalf("unexpected attempt: %#v", attempt)
	}

	count, err := rec.Count("success")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 success observed, got %v", count)
	}
}

func TestDeliverKeepsCallerCorrelationID(t *testing.T) {
	svc := &fakeService{}
	d := dispatch.New(svc)
	ctx := logging.WithCorrelationID(context.Background(), "given-id")

	result := d.Deliver(ctx, "ds")
	if result.RequestID != "given-id" {
		t.Fatalf("expected caller correlation id, got %q", result.RequestID)
	}
}

func TestDeliverRecordsFailureAndReturnsError(t *testing.T) {
	statusErr := &notifications.StatusError{URL: "http://x/webhook/embed-successful", StatusCode: 502, Status: "502 Bad Gateway"}
	svc := &fakeService{err: func(string) error { return statusErr }}
	journal := &memoryJournal{}

	d := dispatch.New(svc, dispatch.WithJournal(journal))
	err := d.NotifyEmbedReady(context.Background(), "ds-2")
	if !errors.Is(err, statusErr) {
		t.Fatalf("expected status error returned, got %v", err)
	}

	if len(journal.attempts) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(journal.attempts))
	}
	attempt := journal.attempts[0]
	if attempt.Outcome != history.OutcomeStatusError || attempt.StatusCode != 502 {
		t.Fatalf("unexpected attempt: %#v", attempt)
	}
	if attempt.URL != statusErr.URL {
		t.Fatalf("expected url from error, got %q", attempt.URL)
	}
	if attempt.Error == "" {
		t.Fatal("expected error message recorded")
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected no retry, got %d calls", len(svc.calls))
	}
}

func TestDeliverIgnoresJournalFailure(t *testing.T) {
	svc := &fakeService{}
	journal := &memoryJournal{err: errors.New("disk full")}
	d := dispatch.New(svc, dispatch.WithJournal(journal))

	if err := d.NotifyEmbedReady(context.Background(), "ds"); err != nil {
		t.Fatalf("journal errors must not fail delivery, got %v", err)
	}
}

func TestNotifyAllIsolatesResults(t *testing.T) {
	svc := &fakeService{err: func(id string) error {
		if id == "bad" {
			return &notifications.TransportError{URL: "http://x", Err: errors.New("refused")}
		}
		return nil
	}}
	d := dispatch.New(svc, dispatch.WithConcurrency(2))

	ids := []string{"a", "bad", "b", "c"}
	results := d.NotifyAll(context.Background(), ids)
	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	for i, r := range results {
		if r.DatasourceID != ids[i] {
			t.Fatalf("result %d: expected %s, got %s", i, ids[i], r.DatasourceID)
		}
		wantFail := ids[i] == "bad"
		if (r.Err != nil) != wantFail {
			t.Fatalf("result %d (%s): unexpected error state %v", i, r.DatasourceID, r.Err)
		}
	}
	if dispatch.Failed(results) != 1 {
		t.Fatalf("expected 1 failure, got %d", dispatch.Failed(results))
	}

	calls := append([]string(nil), svc.calls...)
	sort.Strings(calls)
	want := []string{"a", "b", "bad", "c"}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("expected each id called once, got %v", calls)
		}
	}

	seen := map[string]struct{}{}
	for _, r := range results {
		if _, dup := seen[r.RequestID]; dup {
			t.Fatalf("request ids must be unique per call, duplicate %q", r.RequestID)
		}
		seen[r.RequestID] = struct{}{}
	}
}

func TestNotifyAllAgainstWebapp(t *testing.T) {
	webapp := testsupport.NewWebappFunc(t, func(id string) int {
		if id == "missing" {
			return http.StatusNotFound
		}
		return http.StatusOK
	})
	cfg := testsupport.NewConfig(t, testsupport.WithWebappHost(webapp.Host()))
	store := config.NewStore(cfg)
	journal := testsupport.MustOpenHistory(t, cfg)
	rec := metrics.NewRecorder()

	svc := notifications.NewService(store, webapp.Server.Client())
	d := dispatch.New(svc,
		dispatch.WithHosts(store),
		dispatch.WithJournal(journal),
		dispatch.WithObserver(rec),
	)

	ids := make([]string, 0, 20)
	for i := 0; i < 19; i++ {
		ids = append(ids, fmt.Sprintf("ds-%d", i))
	}
	ids = append(ids, "missing")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results := d.NotifyAll(ctx, ids)

	if dispatch.Failed(results) != 1 {
		t.Fatalf("expected exactly one failure, got %d", dispatch.Failed(results))
	}
	last := results[len(results)-1]
	if last.Outcome != history.OutcomeStatusError || last.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected result for missing: %#v", last)
	}

	received := webapp.Received()
	if len(received) != len(ids) {
		t.Fatalf("expected %d callbacks, got %d", len(ids), len(received))
	}

	attempts, err := journal.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(attempts) != len(ids) {
		t.Fatalf("expected %d journal entries, got %d", len(ids), len(attempts))
	}

	success, err := rec.Count("success")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if success != 19 {
		t.Fatalf("expected 19 successes, got %v", success)
	}
}

func TestDeliverJournalsURLActuallyPosted(t *testing.T) {
	webapp := testsupport.NewWebapp(t, http.StatusOK)
	journal := &memoryJournal{}
	svc := notifications.NewService(notifications.HostFunc(webapp.Host), webapp.Server.Client())
	stale := notifications.HostFunc(func() string { return "stale:1" })

	d := dispatch.New(svc, dispatch.WithJournal(journal), dispatch.WithHosts(stale))
	if result := d.Deliver(context.Background(), "ds"); result.Err != nil {
		t.Fatalf("Deliver: %v", result.Err)
	}

	if len(journal.attempts) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(journal.attempts))
	}
	want := "http://" + webapp.Host() + "/webhook/embed-successful"
	if got := journal.attempts[0].URL; got != want {
		t.Fatalf("journaled url %q, want posted url %q", got, want)
	}
}
