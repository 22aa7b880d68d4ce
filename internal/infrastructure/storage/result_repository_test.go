package storage

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

func setupTestRepo(t *testing.T) *ResultRepository {
	t.Helper()

	repo, err := OpenResultRepository(MemoryPath)
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(runID, url, model string, total int, createdAt time.Time) *page.Record {
	rec := page.NewRecord(runID, page.NewContent(url, "raw "+url, page.FormatMarkdown), model)
	rec.Strategy = page.StrategySplit
	rec.ChunkCount = 2
	rec.ContentTokens = 300
	rec.InstructionTokens = 10
	rec.AnswerTokens = 4
	rec.Usage = page.NewUsage(total-4, 4)
	rec.TotalTokens = total
	rec.CostUSD = float64(total) / 1000
	rec.Answer = "answer"
	rec.AdaptedContent = "adapted"
	rec.CreatedAt = createdAt
	return rec
}

func TestResultRepository_SaveAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	want := testRecord("run-1", "https://example.com/a", "gpt-4o", 500, time.Now().UTC())
	want.LimitExceeded = true
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, want.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.URL != want.URL || got.Strategy != want.Strategy || got.Format != want.Format {
		t.Errorf("identity fields differ: %+v", got)
	}
	if got.Usage != want.Usage || got.TotalTokens != 500 || got.ChunkCount != 2 {
		t.Errorf("token fields differ: %+v", got)
	}
	if !got.LimitExceeded || got.Answer != "answer" || got.RawContent != want.RawContent {
		t.Errorf("content fields differ: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	if err := repo.Save(ctx, nil); err == nil {
		t.Error("expected error for nil record")
	}
	if err := repo.Save(ctx, want); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestResultRepository_GetMissing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestResultRepository_List(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		model := "gpt-4o"
		run := "run-1"
		if i >= 3 {
			model = "llama3"
			run = "run-2"
		}
		rec := testRecord(run, fmt.Sprintf("https://example.com/%d", i), model, 100, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		filter    ports.ResultFilter
		wantCount int
		wantFirst string
	}{
		{"all newest first", ports.ResultFilter{}, 5, "https://example.com/4"},
		{"by run", ports.ResultFilter{RunID: "run-1"}, 3, "https://example.com/2"},
		{"by model", ports.ResultFilter{Model: "llama3"}, 2, "https://example.com/4"},
		{"by url fragment", ports.ResultFilter{URL: "com/1"}, 1, "https://example.com/1"},
		{"since", ports.ResultFilter{Since: base.Add(2 * time.Minute)}, 3, "https://example.com/4"},
		{"limit", ports.ResultFilter{Limit: 2}, 2, "https://example.com/4"},
		{"offset", ports.ResultFilter{Limit: 2, Offset: 2}, 2, "https://example.com/2"},
		{"no match", ports.ResultFilter{RunID: "run-9"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d records, got %d", tt.wantCount, len(got))
			}
			if tt.wantCount > 0 && got[0].URL != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0].URL, tt.wantFirst)
			}
		})
	}
}

func TestResultRepository_Summary(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*page.Record{
		testRecord("run-1", "a", "gpt-4o", 100, now),
		testRecord("run-1", "b", "gpt-4o", 200, now),
		testRecord("run-1", "c", "llama3", 50, now),
		testRecord("run-2", "d", "gpt-4o", 1000, now),
	}
	records[1].LimitExceeded = true
	for _, rec := range records {
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := repo.Summary(ctx, ports.ResultFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.Pages != 3 || summary.TotalTokens != 350 {
		t.Errorf("totals = %d pages / %d tokens", summary.Pages, summary.TotalTokens)
	}
	if math.Abs(summary.CostUSD-0.35) > 1e-9 {
		t.Errorf("CostUSD = %v", summary.CostUSD)
	}
	if len(summary.ByModel) != 2 {
		t.Fatalf("expected 2 models, got %+v", summary.ByModel)
	}
	gpt := summary.ByModel[0]
	if gpt.Model != "gpt-4o" || gpt.Pages != 2 || gpt.TotalTokens != 300 || gpt.LimitExceeded != 1 {
		t.Errorf("unexpected gpt-4o summary %+v", gpt)
	}

	empty, err := repo.Summary(ctx, ports.ResultFilter{RunID: "none"})
	if err != nil || empty.Pages != 0 || len(empty.ByModel) != 0 {
		t.Errorf("expected empty summary, got %+v, %v", empty, err)
	}
}

func TestOpenResultRepository_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "results.db")

	repo, err := OpenResultRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := testRecord("run-1", "a", "gpt-4o", 10, time.Now().UTC())
	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	// reopening must not re-apply migrations or lose data
	repo, err = OpenResultRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Get(context.Background(), rec.ID); err != nil {
		t.Errorf("record lost after reopen: %v", err)
	}
}
