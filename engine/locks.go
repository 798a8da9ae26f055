package engine

import "sync"

// machineLocks hands out one mutex per machine id so that session-lifecycle
// operations for the same machine apply in arrival order while different
// machines proceed in parallel.
type machineLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newMachineLocks() *machineLocks {
	return &machineLocks{locks: make(map[uint]*sync.Mutex)}
}

func (l *machineLocks) get(machineID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[machineID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[machineID] = m
	}
	return m
}

// pressGates tracks in-flight button-press increments per machine so that
// completion can drain them before computing totals. Presses hold the read
// side and never wait on each other; completion takes the write side, which
// waits out every in-flight press and holds new ones back until the session
// is finalized.
type pressGates struct {
	mu    sync.Mutex
	gates map[uint]*sync.RWMutex
}

func newPressGates() *pressGates {
	return &pressGates{gates: make(map[uint]*sync.RWMutex)}
}

func (p *pressGates) get(machineID uint) *sync.RWMutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate, ok := p.gates[machineID]
	if !ok {
		gate = &sync.RWMutex{}
		p.gates[machineID] = gate
	}
	return gate
}
