// Package ledger provides the named, guarded resources transfers operate on.
// An Account pairs an integer balance with an exclusive guard; the balance
// may only be mutated while the guard is held. A Ledger groups accounts and
// can persist balances to a Store.
package ledger
