// Package transfer moves value between two guarded accounts using one of the
// deadlock-safe acquisition strategies. The executor validates the request,
// acquires both guards through the selected strategy, re-checks the balance
// under the guards and applies the debit and credit atomically. Guards are
// released on every exit path; callers always receive a typed Outcome, never
// a panic or an orphaned hold.
package transfer
