// Package progress fans audit progress events out to subscribers. Each
// audit gets a Broadcaster that keeps a bounded history for late
// joiners and drops subscribers that stop draining their mailbox, so a
// stalled client can never block the audit pipeline.
package progress
