// Package notifications tells the web application that a datasource has
// finished embedding.
//
// Each call reads the web application host from a shared HostSource, posts
// {"datasourceId": "..."} to http://<host>/webhook/embed-successful over an
// injected http.Client, and maps the outcome to nil, a TransportError, or a
// StatusError. Delivery is a single best-effort attempt: there are no
// retries, no queueing, and no timeout beyond what the caller's context or
// client imposes. Callers depend only on the Service interface.
package notifications
