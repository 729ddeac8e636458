package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"embednotify/internal/logging"
)

const (
	userAgent = "embednotify/0.1.0"

	// EmbedReadyPath is the fixed webhook path on the web application.
	EmbedReadyPath = "/webhook/embed-successful"

	// RequestIDHeader carries the per-call correlation identifier.
	RequestIDHeader = "X-Request-ID"
)

// Service defines the notification surface exposed to callers.
type Service interface {
	NotifyEmbedReady(ctx context.Context, datasourceID string) error
}

// HostSource supplies the web application host at call time. It is read once
// per notification, so updates take effect for the next call.
type HostSource interface {
	WebappHost() string
}

// HostFunc adapts a plain function to HostSource.
type HostFunc func() string

func (f HostFunc) WebappHost() string { return f() }

// EmbedReadyPayload is the JSON body posted to the web application.
type EmbedReadyPayload struct {
	DatasourceID string `json:"datasourceId"`
}

// EmbedReadyURL builds the webhook URL for host. The host is used verbatim.
func EmbedReadyURL(host string) string {
	return "http://" + host + EmbedReadyPath
}

// EmbedReadyBody serializes the payload for datasourceID.
func EmbedReadyBody(datasourceID string) ([]byte, error) {
	return json.Marshal(EmbedReadyPayload{DatasourceID: datasourceID})
}

// Notifier posts embed-ready callbacks to the web application.
type Notifier struct {
	hosts  HostSource
	client *http.Client
}

// NewService builds a Notifier reading its host from hosts. The client is
// shared across calls so connections are pooled; nil selects
// http.DefaultClient.
func NewService(hosts HostSource, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{hosts: hosts, client: client}
}

// NotifyEmbedReady signals that datasourceID finished embedding. It makes
// exactly one request and never retries.
func (n *Notifier) NotifyEmbedReady(ctx context.Context, datasourceID string) error {
	_, err := n.Send(ctx, datasourceID)
	return err
}

// Send is NotifyEmbedReady that also reports the URL it posted to, resolved
// from the single host read of this call.
func (n *Notifier) Send(ctx context.Context, datasourceID string) (string, error) {
	var host string
	if n.hosts != nil {
		host = n.hosts.WebappHost()
	}
	url := EmbedReadyURL(host)

	body, err := EmbedReadyBody(datasourceID)
	if err != nil {
		return url, fmt.Errorf("encode embed-ready payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return url, &TransportError{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	requestID, ok := logging.CorrelationIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := n.client.Do(req)
	if err != nil {
		return url, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return url, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return url, nil
}
