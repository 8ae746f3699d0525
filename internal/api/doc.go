// Package api exposes the audit engine over HTTP: starting audits,
// polling status and results, and streaming progress over SSE.
package api
