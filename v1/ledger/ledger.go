package ledger

import (
	"context"
	"sort"
	"sync"
)

// Ledger is a registry of accounts. It owns no transfer logic; it exists so
// callers can enumerate accounts, take conservation snapshots and move
// balances to and from a Store.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[string]*Account)}
}

// Add registers an account. It returns false if the name is already taken.
func (l *Ledger) Add(a *Account) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[a.Name()]; exists {
		return false
	}
	l.accounts[a.Name()] = a
	return true
}

// Get returns the account with the given name, if registered.
func (l *Ledger) Get(name string) (*Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[name]
	return a, ok
}

// Accounts returns all accounts ordered by guard ID, which is the global
// acquisition order.
func (l *Ledger) Accounts() []*Account {
	l.mu.RLock()
	out := make([]*Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Guard().ID() < out[j].Guard().ID()
	})
	return out
}

// TotalBalance takes every guard in ID order, sums the balances and releases
// in reverse. Taking all guards makes the sum a consistent cut, so it is
// exact even while transfers are in flight.
func (l *Ledger) TotalBalance() int64 {
	accounts := l.Accounts()
	for _, a := range accounts {
		a.Guard().Lock()
	}
	var total int64
	for _, a := range accounts {
		total += a.BalanceLocked()
	}
	for i := len(accounts) - 1; i >= 0; i-- {
		accounts[i].Guard().Unlock()
	}
	return total
}

// Snapshot returns a consistent name -> balance view, taken under all guards
// in ID order.
func (l *Ledger) Snapshot() map[string]int64 {
	accounts := l.Accounts()
	for _, a := range accounts {
		a.Guard().Lock()
	}
	out := make(map[string]int64, len(accounts))
	for _, a := range accounts {
		out[a.Name()] = a.BalanceLocked()
	}
	for i := len(accounts) - 1; i >= 0; i-- {
		accounts[i].Guard().Unlock()
	}
	return out
}

// Persist writes every balance to the store. Balances are read under a
// consistent cut first, then written without any guard held.
func (l *Ledger) Persist(ctx context.Context, store Store) error {
	for name, balance := range l.Snapshot() {
		if err := store.Set(ctx, name, balance); err != nil {
			return err
		}
	}
	return nil
}

// Load overwrites registered accounts with balances found in the store.
// Accounts missing from the store keep their current balance.
func (l *Ledger) Load(ctx context.Context, store Store) error {
	for _, a := range l.Accounts() {
		balance, ok, err := store.Get(ctx, a.Name())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		a.Guard().Lock()
		a.SetBalanceLocked(balance)
		a.Guard().Unlock()
	}
	return nil
}
