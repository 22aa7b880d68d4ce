// Package usage tracks token consumption for a page and across a run.
package usage

import (
	"sync"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// Limits holds usage ceilings keyed by credential name.
// A ceiling of 0 means unlimited.
type Limits struct {
	// Ceilings are explicit per-credential ceilings in tokens.
	Ceilings map[string]int
	// Default is the implicit ceiling for credentials without an explicit entry.
	Default int
}

// CeilingFor returns the ceiling that applies to credential.
func (l Limits) CeilingFor(credential string) int {
	if c, ok := l.Ceilings[credential]; ok {
		return c
	}
	return l.Default
}

// Accumulator sums token usage for the model calls of one page.
// It is safe for concurrent use and must not be shared between pages.
type Accumulator struct {
	mu     sync.Mutex
	usage  page.Usage
	calls  int
	ledger *Ledger
	limits Limits
}

// NewAccumulator creates a page accumulator. ledger may be nil, in which case
// only the page's own usage counts toward the ceiling.
func NewAccumulator(ledger *Ledger, limits Limits) *Accumulator {
	return &Accumulator{ledger: ledger, limits: limits}
}

// Record adds the usage of one model call.
func (a *Accumulator) Record(u page.Usage) {
	a.mu.Lock()
	a.usage = a.usage.Add(u)
	a.calls++
	a.mu.Unlock()
}

// Total returns the accumulated total tokens.
func (a *Accumulator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage.TotalTokens
}

// Usage returns the accumulated usage breakdown.
func (a *Accumulator) Usage() page.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// Calls returns how many usages were recorded.
func (a *Accumulator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// ExceededLimit reports whether this page's usage plus the usage already
// committed for credential during the run crosses the credential's ceiling.
func (a *Accumulator) ExceededLimit(credential string) bool {
	ceiling := a.limits.CeilingFor(credential)
	if ceiling <= 0 {
		return false
	}

	used := a.Total()
	if a.ledger != nil {
		used += a.ledger.Used(credential)
	}
	return used > ceiling
}

// Settle commits this page's total to the run ledger under credential and
// reports whether the committed total crosses the credential's ceiling,
// as one ledger operation. Without a ledger only the page's own usage counts.
func (a *Accumulator) Settle(credential string) bool {
	ceiling := a.limits.CeilingFor(credential)
	total := a.Total()
	if a.ledger == nil {
		return ceiling > 0 && total > ceiling
	}
	return a.ledger.AddAndCheck(credential, total, ceiling)
}

// Commit adds this page's total to the run ledger under credential.
func (a *Accumulator) Commit(credential string) {
	if a.ledger == nil {
		return
	}
	a.ledger.Add(credential, a.Total())
}
