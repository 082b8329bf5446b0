package ledger

import "github.com/mirkobrombin/go-tandem/v1/lock"

// Account is a named unit of value protected by an exclusive guard. Methods
// with the Locked suffix require the caller to hold Guard(); the plain
// accessors take it briefly themselves.
type Account struct {
	name    string
	guard   *lock.Mutex
	balance int64
}

// NewAccount returns an account with the given starting balance.
func NewAccount(name string, balance int64) *Account {
	return &Account{
		name:    name,
		guard:   lock.New("account:" + name),
		balance: balance,
	}
}

// Name returns the account name.
func (a *Account) Name() string { return a.name }

// Guard returns the account's exclusive guard. Its ID is the account's lock
// identity for ordering decisions.
func (a *Account) Guard() *lock.Mutex { return a.guard }

// Balance takes the guard briefly and returns the current balance.
func (a *Account) Balance() int64 {
	a.guard.Lock()
	defer a.guard.Unlock()
	return a.balance
}

// BalanceLocked returns the balance. The caller must hold Guard().
func (a *Account) BalanceLocked() int64 { return a.balance }

// AddLocked applies a signed delta to the balance. The caller must hold
// Guard() and have validated the delta.
func (a *Account) AddLocked(delta int64) { a.balance += delta }

// SetBalanceLocked overwrites the balance, used when loading from a Store.
// The caller must hold Guard().
func (a *Account) SetBalanceLocked(balance int64) { a.balance = balance }
