package pipeline

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
	"github.com/jbctechsolutions/webdistill/internal/domain/usage"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/testutil"
)

func newTestProcessor(fake *testutil.FakeProvider, policy page.Policy, cfg ProcessorConfig) *Processor {
	adapter := newTestAdapter(fake, 100, policy)
	if cfg.Instructions == "" {
		cfg.Instructions = tenWords
	}
	return NewProcessor(adapter, cfg, nil, nil)
}

func TestProcessor_BuildsRecord(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.CompleteFunc = func(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
		return &ports.CompletionResponse{Content: "three word answer", InputTokens: 90, OutputTokens: 3}, nil
	}
	sink := &testutil.FakeSink{}
	proc := newTestProcessor(fake, page.PolicySplit, ProcessorConfig{RunID: "run-1", Sink: sink})

	content := testutil.NewTestContent("https://example.com/a", testutil.Words(250))
	res, err := proc.Process(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped || res.Record == nil {
		t.Fatalf("expected a record, got %+v", res)
	}

	records := sink.Records()
	if len(records) != 1 || records[0] != res.Record {
		t.Fatalf("expected the record to reach the sink once, got %d", len(records))
	}

	rec := res.Record
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"run id", rec.RunID, "run-1"},
		{"url", rec.URL, "https://example.com/a"},
		{"model", rec.Model, "test-model"},
		{"strategy", rec.Strategy, page.StrategySplit},
		{"chunks", rec.ChunkCount, 4},
		{"content length", rec.ContentLength, len(content.Text)},
		{"content tokens", rec.ContentTokens, 250},
		{"instruction tokens", rec.InstructionTokens, 10},
		{"answer tokens", rec.AnswerTokens, 12},
		{"total tokens", rec.TotalTokens, 4 * 93},
		{"usage", rec.Usage, page.NewUsage(360, 12)},
		{"raw content", rec.RawContent, content.Text},
		{"adapted content", rec.AdaptedContent, content.Text},
		{"limit exceeded", rec.LimitExceeded, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Error("record should have an id and timestamp")
	}
}

func TestProcessor_SkipProducesNoRecord(t *testing.T) {
	fake := testutil.NewFakeProvider()
	sink := &testutil.FakeSink{}
	proc := newTestProcessor(fake, page.PolicySkip, ProcessorConfig{Sink: sink})

	res, err := proc.Process(context.Background(), testutil.NewTestContent("u", testutil.Words(250)))
	if err != nil {
		t.Fatalf("skip must not be an error: %v", err)
	}
	if !res.Skipped || res.Record != nil {
		t.Errorf("expected a skipped result without record, got %+v", res)
	}
	if fake.Calls() != 0 || len(sink.Records()) != 0 {
		t.Errorf("calls=%d records=%d, want 0 and 0", fake.Calls(), len(sink.Records()))
	}
}

func TestProcessor_FailureProducesNoRecord(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.CompleteFunc = func(context.Context, ports.CompletionRequest) (*ports.CompletionResponse, error) {
		return nil, errors.NewError(errors.CodeAuthentication, "bad key", errors.ErrAuthentication)
	}
	sink := &testutil.FakeSink{}
	ledger := usage.NewLedger()
	proc := newTestProcessor(fake, page.PolicyTruncate, ProcessorConfig{Sink: sink, Ledger: ledger})

	res, err := proc.Process(context.Background(), testutil.NewTestContent("u", testutil.Words(250)))
	if err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
	if !errors.IsAuthentication(err) {
		t.Errorf("expected authentication error, got %v", err)
	}
	if len(sink.Records()) != 0 {
		t.Error("a failed page must not produce a record")
	}
	if ledger.Used("fake-key") != 0 {
		t.Error("a call that failed spent nothing, so the ledger should stay empty")
	}
}

func TestProcessor_FailedSplitCommitsSpentTokens(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.CompleteFunc = func(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
		if firstWord(t, req) == "w80" {
			return nil, stderrors.New("connection reset")
		}
		return &ports.CompletionResponse{Content: "answer", InputTokens: 10, OutputTokens: 5}, nil
	}

	runner := NewRunner(fake, testutil.NewTestModel(100))
	adapter := NewAdapter(testutil.WordCounter, runner, AdapterConfig{Policy: page.PolicySplit, MaxConcurrency: 1})
	ledger := usage.NewLedger()
	sink := &testutil.FakeSink{}
	proc := NewProcessor(adapter, ProcessorConfig{Instructions: tenWords, Ledger: ledger, Sink: sink}, nil, nil)

	if _, err := proc.Process(context.Background(), testutil.NewTestContent("u", testutil.Words(250))); err == nil {
		t.Fatal("expected the page to fail")
	}
	if len(sink.Records()) != 0 {
		t.Error("a failed page must not produce a record")
	}
	// The first chunk completed before the second failed; later chunks never ran.
	if fake.Calls() != 2 {
		t.Errorf("calls = %d, want 2", fake.Calls())
	}
	if got := ledger.Used("fake-key"); got != 15 {
		t.Errorf("ledger = %d, want the 15 tokens already spent", got)
	}
}

func TestProcessor_UsageCeiling(t *testing.T) {
	tests := []struct {
		name     string
		limits   usage.Limits
		cred     string
		wantFlag []bool
	}{
		{
			name:     "default ceiling crossed on second page",
			limits:   usage.Limits{Default: 20},
			wantFlag: []bool{false, true, true},
		},
		{
			name:     "explicit ceiling wins over default",
			limits:   usage.Limits{Default: 1, Ceilings: map[string]int{"fake-key": 40}},
			wantFlag: []bool{false, false, true},
		},
		{
			name:     "explicit zero is unlimited",
			limits:   usage.Limits{Default: 1, Ceilings: map[string]int{"fake-key": 0}},
			wantFlag: []bool{false, false, false},
		},
		{
			name:     "configured credential name",
			limits:   usage.Limits{Ceilings: map[string]int{"team": 10}},
			cred:     "team",
			wantFlag: []bool{true, true, true},
		},
		{
			name:     "no ceiling",
			wantFlag: []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeProvider() // 15 tokens per call
			ledger := usage.NewLedger()
			proc := newTestProcessor(fake, page.PolicySplit, ProcessorConfig{
				Limits:     tt.limits,
				Ledger:     ledger,
				Credential: tt.cred,
			})

			for i, want := range tt.wantFlag {
				res, err := proc.Process(context.Background(), testutil.NewTestContent("u", testutil.Words(10)))
				if err != nil {
					t.Fatalf("page %d: %v", i, err)
				}
				if res.Record.LimitExceeded != want {
					t.Errorf("page %d: LimitExceeded = %v, want %v", i, res.Record.LimitExceeded, want)
				}
			}

			cred := tt.cred
			if cred == "" {
				cred = "fake-key"
			}
			if got := ledger.Used(cred); got != 15*len(tt.wantFlag) {
				t.Errorf("ledger for %s = %d", cred, got)
			}
		})
	}
}

func TestProcessor_SinkError(t *testing.T) {
	sink := &testutil.FakeSink{SaveErr: stderrors.New("disk full")}
	proc := newTestProcessor(testutil.NewFakeProvider(), page.PolicySkip, ProcessorConfig{Sink: sink})

	_, err := proc.Process(context.Background(), testutil.NewTestContent("u", "short page"))
	if errors.CodeOf(err) != errors.CodeExecution {
		t.Errorf("expected EXECUTION error, got %v", err)
	}
}

func TestProcessor_Cost(t *testing.T) {
	fake := testutil.NewFakeProvider()
	proc := newTestProcessor(fake, page.PolicySkip, ProcessorConfig{
		Prices: provider.NewPriceList(map[string]provider.Rate{"test-model": {Input: 1, Output: 2}}),
	})

	res, err := proc.Process(context.Background(), testutil.NewTestContent("u", "short page"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10 prompt and 5 completion tokens.
	if want := 0.02; math.Abs(res.Record.CostUSD-want) > 1e-12 {
		t.Errorf("CostUSD = %v, want %v", res.Record.CostUSD, want)
	}
}
