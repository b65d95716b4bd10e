// Package policy implements the built-in eviction policy state machines:
// simple queue policies (fifo, lru, clock, sieve), exact LFU over frequency
// classes, the adaptive ghost-list policy (arc), the three-tier FIFO hybrid
// (s3fifo), the hot/cold/test adaptive clock (clockpro), and the sampled
// scored policy external scoring functions plug into.
//
// Each policy registers itself with the kernel's registry at init time;
// importing this package for side effects makes the full set available by
// name. Policies share the object store's intrusive queues for ordering and
// the per-object scratch fields for counters, bits, and tier tags.
package policy
