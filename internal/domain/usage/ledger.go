package usage

import "sync"

// Ledger is the run-scoped per-credential token tally. It lives in memory
// for one run and is never persisted.
type Ledger struct {
	mu   sync.RWMutex
	used map[string]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{used: make(map[string]int)}
}

// Add records tokens consumed under credential.
func (l *Ledger) Add(credential string, tokens int) {
	if tokens <= 0 {
		return
	}
	l.mu.Lock()
	l.used[credential] += tokens
	l.mu.Unlock()
}

// AddAndCheck records tokens under credential and reports whether the
// credential's new total exceeds ceiling. Both happen under one lock.
// A ceiling of 0 never trips.
func (l *Ledger) AddAndCheck(credential string, tokens, ceiling int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tokens > 0 {
		l.used[credential] += tokens
	}
	return ceiling > 0 && l.used[credential] > ceiling
}

// Used returns the tokens recorded for credential.
func (l *Ledger) Used(credential string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used[credential]
}

// Snapshot returns a copy of all tallies.
func (l *Ledger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int, len(l.used))
	for k, v := range l.used {
		out[k] = v
	}
	return out
}
