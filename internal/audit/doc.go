// Package audit defines the core domain types shared across the site
// audit engine: page records produced by the crawler, analysis results
// and issues produced by the analyzers, and the audit lifecycle record
// that ties a run together. Interfaces for the pluggable pieces
// (renderer, clock, ID generation) also live here so that packages
// depend on audit rather than on each other.
package audit
