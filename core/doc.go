// Package core contains the relay domain: entities, store contracts, the
// command ledger, the event emitter, the order status guard and the write
// and read services built on top of them. Storage, transport and delivery
// adapters depend on this package; core does not depend on them.
package core
