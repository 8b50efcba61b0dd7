// Package nats implements lock.Store on a NATS JetStream key-value bucket.
// It holds job locks only and is paired with a relational or document
// backend through store.WithLocks.
//
// Each job name is one key whose value is the JSON-encoded lock. A claim is
// a compare-and-set: Create when the key is absent, or Update against the
// revision that was read when the previous lease is found expired. Losing
// either race is reported as a denial. Lease expiry is judged on the
// caller's clock, so instances sharing a bucket need synchronised clocks.
//
//	js, _ := jetstream.New(nc)
//	locks, err := nats.Open(ctx, js, "goalpace_locks")
//	st := store.WithLocks(pg, locks)
package nats
