package detect

import (
	"context"
	"sync"
)

// Registry records which owner holds which guards and which guard each owner
// is currently waiting for. Owners are opaque identifiers chosen by the
// acquisition strategies (one per acquisition attempt).
//
// All methods take a single internal mutex, so a Snapshot is internally
// consistent: it never shows a guard both free and awaited-from-a-holder.
type Registry struct {
	mu      sync.Mutex
	owners  map[string]*ownerState
	holders map[uint64]string
}

type ownerState struct {
	held     map[uint64]struct{}
	awaiting uint64 // 0 means not waiting
	cancel   context.CancelFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		owners:  make(map[string]*ownerState),
		holders: make(map[uint64]string),
	}
}

func (r *Registry) owner(id string) *ownerState {
	st, ok := r.owners[id]
	if !ok {
		st = &ownerState{held: make(map[uint64]struct{})}
		r.owners[id] = st
	}
	return st
}

// Await records that owner is blocked waiting for lockID.
func (r *Registry) Await(owner string, lockID uint64) {
	r.mu.Lock()
	r.owner(owner).awaiting = lockID
	r.mu.Unlock()
}

// ClearAwait records that owner stopped waiting without acquiring.
func (r *Registry) ClearAwait(owner string) {
	r.mu.Lock()
	if st, ok := r.owners[owner]; ok {
		st.awaiting = 0
		if len(st.held) == 0 && st.cancel == nil {
			delete(r.owners, owner)
		}
	}
	r.mu.Unlock()
}

// Acquired records that owner now holds lockID. Any pending wait by this
// owner is cleared.
func (r *Registry) Acquired(owner string, lockID uint64) {
	r.mu.Lock()
	st := r.owner(owner)
	st.awaiting = 0
	st.held[lockID] = struct{}{}
	r.holders[lockID] = owner
	r.mu.Unlock()
}

// Released records that owner no longer holds lockID.
func (r *Registry) Released(owner string, lockID uint64) {
	r.mu.Lock()
	if st, ok := r.owners[owner]; ok {
		delete(st.held, lockID)
	}
	if r.holders[lockID] == owner {
		delete(r.holders, lockID)
	}
	r.mu.Unlock()
}

// Done removes the owner and everything it holds or awaits. Called when an
// acquisition attempt ends, on every path.
func (r *Registry) Done(owner string) {
	r.mu.Lock()
	if st, ok := r.owners[owner]; ok {
		for id := range st.held {
			if r.holders[id] == owner {
				delete(r.holders, id)
			}
		}
		delete(r.owners, owner)
	}
	r.mu.Unlock()
}

// RegisterCancel associates a cancel function with owner. The monitor calls
// it to abort the owner's wait when the owner participates in a cycle.
func (r *Registry) RegisterCancel(owner string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.owner(owner).cancel = cancel
	r.mu.Unlock()
}

// Cancel invokes the owner's registered cancel function, if any. It reports
// whether a cancellation was issued.
func (r *Registry) Cancel(owner string) bool {
	r.mu.Lock()
	st, ok := r.owners[owner]
	var cancel context.CancelFunc
	if ok {
		cancel = st.cancel
	}
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// OwnerSnap is the observed state of one owner at snapshot time.
type OwnerSnap struct {
	Held        []uint64
	Awaiting    uint64
	Cancellable bool
}

// Snapshot is a consistent copy of the registry state.
type Snapshot struct {
	Owners  map[string]OwnerSnap
	Holders map[uint64]string
}

// Snapshot returns a consistent copy of the current wait/hold state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Owners:  make(map[string]OwnerSnap, len(r.owners)),
		Holders: make(map[uint64]string, len(r.holders)),
	}
	for id, st := range r.owners {
		held := make([]uint64, 0, len(st.held))
		for l := range st.held {
			held = append(held, l)
		}
		snap.Owners[id] = OwnerSnap{
			Held:        held,
			Awaiting:    st.awaiting,
			Cancellable: st.cancel != nil,
		}
	}
	for l, o := range r.holders {
		snap.Holders[l] = o
	}
	return snap
}
