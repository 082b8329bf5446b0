// Package acquire implements the three pair-acquisition strategies used for
// deadlock-safe two-resource operations:
//
//   - Ordered takes both guards in a globally agreed order, preventing
//     circular wait by construction. The wait is unbounded.
//   - Backoff bounds every wait with try-acquire timeouts and retries with
//     randomized, exponentially growing backoff. It never deadlocks but may
//     time out; livelock under sustained contention is mitigated by the
//     jitter, not eliminated.
//   - Interruptible waits in a context-cancellable mode, so an external
//     controller (typically the deadlock monitor) can abort a stuck attempt.
//
// When a detect.Registry is attached, every attempt reports its waits and
// holds there, which is what the wait-for graph detector observes.
package acquire
