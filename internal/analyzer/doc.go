// Package analyzer contains the audit checks and the scheduler that
// runs them. Units run concurrently under a shared cap with per-unit
// timeouts; crawl-independent units start before the crawl so their
// latency overlaps it.
package analyzer
