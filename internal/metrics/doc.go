// Package metrics counts embed-ready notification outcomes with Prometheus
// collectors on a private registry.
//
// The CLI is short-lived, so instead of serving /metrics it writes the
// registry to a node-exporter textfile after each run when configured.
package metrics
