package detect

import "sort"

// Cycle is one deadlock found in the wait-for graph. Owners are listed in
// wait order: Owners[i] is blocked on Locks[i], which is held by
// Owners[(i+1)%len(Owners)].
type Cycle struct {
	Owners []string
	Locks  []uint64
}

// Detector finds cycles in the wait-for graph derived from a Registry.
type Detector struct {
	reg *Registry
}

// NewDetector returns a Detector reading from reg.
func NewDetector(reg *Registry) *Detector {
	return &Detector{reg: reg}
}

// DetectCycles snapshots the registry, builds the wait-for graph and returns
// every cycle in it. An empty result means no deadlock was observable at
// snapshot time; because attempts keep starting and finishing, a cycle that
// forms after the snapshot is only seen by a later pass.
func (d *Detector) DetectCycles() []Cycle {
	snap := d.reg.Snapshot()

	// Edge from each blocked owner to the holder of its awaited lock.
	next := make(map[string]string)
	via := make(map[string]uint64)
	for owner, st := range snap.Owners {
		if st.Awaiting == 0 {
			continue
		}
		holder, ok := snap.Holders[st.Awaiting]
		if !ok || holder == owner {
			continue
		}
		next[owner] = holder
		via[owner] = st.Awaiting
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycles []Cycle

	var dfs func(string)
	dfs = func(owner string) {
		visited[owner] = true
		onStack[owner] = true
		stack = append(stack, owner)

		if succ, ok := next[owner]; ok {
			if !visited[succ] {
				dfs(succ)
			} else if onStack[succ] {
				cycles = append(cycles, extractCycle(stack, succ, via))
			}
		}

		stack = stack[:len(stack)-1]
		onStack[owner] = false
	}

	// Deterministic iteration keeps reports stable across passes.
	roots := make([]string, 0, len(next))
	for owner := range next {
		roots = append(roots, owner)
	}
	sort.Strings(roots)
	for _, owner := range roots {
		if !visited[owner] {
			dfs(owner)
		}
	}
	return cycles
}

// extractCycle slices the DFS stack from the first occurrence of start,
// yielding the participants in wait order.
func extractCycle(stack []string, start string, via map[string]uint64) Cycle {
	i := len(stack) - 1
	for i >= 0 && stack[i] != start {
		i--
	}
	members := stack[i:]
	c := Cycle{
		Owners: make([]string, len(members)),
		Locks:  make([]uint64, len(members)),
	}
	copy(c.Owners, members)
	for j, owner := range c.Owners {
		c.Locks[j] = via[owner]
	}
	return c
}

// Contains reports whether owner participates in the cycle.
func (c Cycle) Contains(owner string) bool {
	for _, o := range c.Owners {
		if o == owner {
			return true
		}
	}
	return false
}
