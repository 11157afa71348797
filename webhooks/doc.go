// Package webhooks drains the delivery backlog written by the event emitter.
//
// Each row moves through a lease lifecycle:
// pending -> claimed (locked_until in the future) -> sent|pending|failed.
// A claim is a single conditional update, so concurrent dispatchers never
// attempt the same row inside one lease window. A worker that dies mid-flight
// leaves the row pending; it becomes claimable again once the lease expires.
package webhooks
