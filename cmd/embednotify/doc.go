// Package main hosts the embednotify CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the shared HTTP
// client, and hands datasource ids to the dispatcher, which logs, journals,
// and counts every embed-ready callback. Keep commands thin: new behaviour
// belongs in the internal packages first.
package main
