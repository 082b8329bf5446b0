// Package detect maintains an application-level wait registry and finds
// deadlocks in it. The acquisition strategies report who holds and who awaits
// each guard; the detector builds the wait-for graph from a consistent
// snapshot of that registry and reports every cycle. The monitor runs
// detection on a schedule and can break a cycle by cancelling a participant
// that registered a cancel function.
package detect
