// Package throttle implements the cache-backed rate limiting that keeps
// notification volume bounded.
//
// Two primitives cover both throttles:
//   - last-sent timestamps per error stack (suppress repeats for a while
//     after a send)
//   - windowed counters per project (cap sends per 30-minute bucket)
//
// Window bucketing floors the current time to the window size and embeds
// the bucket boundary in the cache key, so buckets roll over on their own
// and the cache's TTL handles cleanup. Workers in different processes
// coordinate only through the cache's atomic increment; there are no
// shared in-process locks.
//
// Cache failures fail open: a notification is never dropped because the
// cache was unreachable.
package throttle
