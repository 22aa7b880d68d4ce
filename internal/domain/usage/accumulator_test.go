package usage

import (
	"sync"
	"testing"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

func TestAccumulator_RecordAndTotal(t *testing.T) {
	acc := NewAccumulator(nil, Limits{})

	acc.Record(page.NewUsage(100, 20))
	acc.Record(page.NewUsage(50, 10))

	if got := acc.Total(); got != 180 {
		t.Errorf("Total() = %d, want 180", got)
	}
	want := page.Usage{PromptTokens: 150, CompletionTokens: 30, TotalTokens: 180}
	if got := acc.Usage(); got != want {
		t.Errorf("Usage() = %+v, want %+v", got, want)
	}
	if acc.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", acc.Calls())
	}
}

func TestAccumulator_ConcurrentRecord(t *testing.T) {
	acc := NewAccumulator(nil, Limits{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Record(page.NewUsage(3, 2))
		}()
	}
	wg.Wait()

	if got := acc.Total(); got != 500 {
		t.Errorf("Total() = %d, want 500", got)
	}
	if acc.Calls() != 100 {
		t.Errorf("Calls() = %d, want 100", acc.Calls())
	}
}

func TestAccumulator_ExceededLimit(t *testing.T) {
	tests := []struct {
		name       string
		limits     Limits
		ledgerUsed int
		ledgerFor  string
		pageUsage  page.Usage
		credential string
		want       bool
	}{
		{
			name:       "no ceiling",
			limits:     Limits{},
			pageUsage:  page.NewUsage(1_000_000, 0),
			credential: "openai",
			want:       false,
		},
		{
			name:       "explicit ceiling not crossed",
			limits:     Limits{Ceilings: map[string]int{"openai": 1000}},
			pageUsage:  page.NewUsage(900, 100),
			credential: "openai",
			want:       false,
		},
		{
			name:       "explicit ceiling crossed by page alone",
			limits:     Limits{Ceilings: map[string]int{"openai": 1000}},
			pageUsage:  page.NewUsage(900, 101),
			credential: "openai",
			want:       true,
		},
		{
			name:       "crossed with run usage",
			limits:     Limits{Ceilings: map[string]int{"openai": 1000}},
			ledgerUsed: 600,
			pageUsage:  page.NewUsage(300, 200),
			credential: "openai",
			want:       true,
		},
		{
			name:       "implicit default applies",
			limits:     Limits{Default: 100},
			pageUsage:  page.NewUsage(90, 20),
			credential: "anthropic",
			want:       true,
		},
		{
			name:       "explicit zero overrides default",
			limits:     Limits{Default: 100, Ceilings: map[string]int{"local": 0}},
			pageUsage:  page.NewUsage(900, 20),
			credential: "local",
			want:       false,
		},
		{
			name:       "other credential usage ignored",
			limits:     Limits{Default: 1000},
			ledgerUsed: 5000,
			ledgerFor:  "someone-else",
			pageUsage:  page.NewUsage(10, 10),
			credential: "fresh",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger()
			owner := tt.credential
			if tt.ledgerFor != "" {
				owner = tt.ledgerFor
			}
			ledger.Add(owner, tt.ledgerUsed)

			acc := NewAccumulator(ledger, tt.limits)
			acc.Record(tt.pageUsage)

			if got := acc.ExceededLimit(tt.credential); got != tt.want {
				t.Errorf("ExceededLimit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccumulator_CommitIsolatesPages(t *testing.T) {
	ledger := NewLedger()
	limits := Limits{Ceilings: map[string]int{"k": 250}}

	first := NewAccumulator(ledger, limits)
	first.Record(page.NewUsage(100, 50))
	if first.ExceededLimit("k") {
		t.Fatal("first page should be under the ceiling")
	}
	first.Commit("k")

	second := NewAccumulator(ledger, limits)
	if second.Total() != 0 {
		t.Fatalf("new accumulator should start empty, got %d", second.Total())
	}
	second.Record(page.NewUsage(80, 30))
	if !second.ExceededLimit("k") {
		t.Error("second page should cross the ceiling with run usage")
	}

	if ledger.Used("k") != 150 {
		t.Errorf("ledger = %d, want 150", ledger.Used("k"))
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	l.Add("b", 10)
	l.Add("a", 5)
	l.Add("a", 5)
	l.Add("c", 0)

	if l.Used("a") != 10 || l.Used("b") != 10 || l.Used("c") != 0 {
		t.Errorf("unexpected tallies: %v", l.Snapshot())
	}

	snap := l.Snapshot()
	snap["a"] = 999
	if l.Used("a") != 10 {
		t.Error("Snapshot must return a copy")
	}
}

func TestLedger_AddAndCheck(t *testing.T) {
	l := NewLedger()

	if l.AddAndCheck("k", 60, 100) {
		t.Error("60 of 100 should not trip")
	}
	if !l.AddAndCheck("k", 60, 100) {
		t.Error("120 of 100 should trip")
	}
	if l.AddAndCheck("other", 500, 0) {
		t.Error("a zero ceiling never trips")
	}
	if !l.AddAndCheck("k", 0, 100) {
		t.Error("a zero-token commit still reports the existing overrun")
	}
	if l.Used("k") != 120 {
		t.Errorf("ledger = %d, want 120", l.Used("k"))
	}
}

func TestAccumulator_SettleConcurrentPages(t *testing.T) {
	const pages = 50
	ledger := NewLedger()
	limits := Limits{Ceilings: map[string]int{"k": 100}}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		flagged = make([]bool, pages)
	)
	for i := 0; i < pages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc := NewAccumulator(ledger, limits)
			acc.Record(page.NewUsage(50, 10))
			<-start
			flagged[i] = acc.Settle("k")
		}()
	}
	close(start)
	wg.Wait()

	under := 0
	for _, f := range flagged {
		if !f {
			under++
		}
	}
	// Only the first 60-token page fits under 100.
	if under != 1 {
		t.Errorf("%d pages settled under the ceiling, want 1", under)
	}
	if ledger.Used("k") != 60*pages {
		t.Errorf("ledger = %d, want %d", ledger.Used("k"), 60*pages)
	}
}

func TestAccumulator_SettleWithoutLedger(t *testing.T) {
	acc := NewAccumulator(nil, Limits{Default: 10})
	acc.Record(page.NewUsage(8, 2))
	if acc.Settle("k") {
		t.Error("10 of 10 should not trip")
	}
	acc.Record(page.NewUsage(1, 0))
	if !acc.Settle("k") {
		t.Error("11 of 10 should trip")
	}
}
