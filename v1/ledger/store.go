package ledger

import "context"

// Store persists account balances. Persistence is best-effort bookkeeping
// after a committed transfer; it never participates in locking.
type Store interface {
	// Get returns the stored balance for an account. The boolean reports
	// whether the account was found.
	Get(ctx context.Context, account string) (int64, bool, error)
	// Set stores the balance for an account.
	Set(ctx context.Context, account string, balance int64) error
	// Keys lists the accounts present in the store.
	Keys(ctx context.Context) ([]string, error)
}
