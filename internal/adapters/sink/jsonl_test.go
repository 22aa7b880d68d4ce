package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

func newRecord(url string) *page.Record {
	rec := page.NewRecord("run-1", page.NewContent(url, "body", page.FormatMarkdown), "gpt-4o")
	rec.Strategy = page.StrategyPassThrough
	rec.Answer = "answer for " + url
	return rec
}

func readLines(t *testing.T, path string) []page.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []page.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec page.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not a record: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")

	s, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Save(context.Background(), newRecord(fmt.Sprintf("https://example.com/%d", i))); err != nil {
				t.Errorf("Save: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := s.Save(context.Background(), newRecord("late")); err == nil {
		t.Error("Save after Close should fail")
	}

	records := readLines(t, path)
	if len(records) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(records))
	}
	if records[0].RunID != "run-1" || records[0].Strategy != page.StrategyPassThrough {
		t.Errorf("unexpected record %+v", records[0])
	}
}

func TestJSONLSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")

	for i := 0; i < 2; i++ {
		s, err := NewJSONLSink(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Save(context.Background(), newRecord("u")); err != nil {
			t.Fatal(err)
		}
		s.Close()
	}

	if got := len(readLines(t, path)); got != 2 {
		t.Errorf("expected both runs to be kept, got %d lines", got)
	}
}
