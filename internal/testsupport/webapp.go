package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Webapp is a fake web application that records embed-ready callbacks.
type Webapp struct {
	Server *httptest.Server

	mu       sync.Mutex
	status   func(datasourceID string) int
	received []string
}

// NewWebapp starts a fake web application answering every callback with status.
func NewWebapp(t testing.TB, status int) *Webapp {
	t.Helper()
	return NewWebappFunc(t, func(string) int { return status })
}

// NewWebappFunc starts a fake web application whose reply status depends on
// the datasource id in the request body.
func NewWebappFunc(t testing.TB, status func(datasourceID string) int) *Webapp {
	t.Helper()

	w := &Webapp{status: status}
	w.Server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.Server.Close)
	return w
}

func (w *Webapp) handle(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/webhook/embed-successful" {
		http.NotFound(rw, r)
		return
	}
	var payload struct {
		DatasourceID string `json:"datasourceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	w.mu.Lock()
	w.received = append(w.received, payload.DatasourceID)
	w.mu.Unlock()
	rw.WriteHeader(w.status(payload.DatasourceID))
}

// Host returns host:port suitable for webapp.host.
func (w *Webapp) Host() string {
	return strings.TrimPrefix(w.Server.URL, "http://")
}

// Received returns the datasource ids delivered so far, in arrival order.
func (w *Webapp) Received() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.received...)
}
