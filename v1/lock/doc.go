// Package lock provides the exclusive guard primitive used by the acquisition
// strategies. A Mutex supports blocking, non-blocking, bounded and
// context-cancellable acquisition, and carries a stable numeric identity that
// establishes the global acquisition order.
package lock
