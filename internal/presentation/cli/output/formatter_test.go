package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func newTestFormatter(format Format) (*Formatter, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return NewFormatter(WithWriter(buf), WithFormat(format), WithColor(false)), buf
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" table ", FormatTable, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatter_Colorize(t *testing.T) {
	buf := new(bytes.Buffer)
	colored := NewFormatter(WithWriter(buf), WithColor(true))
	if got := colored.Colorize("x", ColorRed); got != string(ColorRed)+"x"+string(ColorReset) {
		t.Errorf("Colorize() = %q", got)
	}

	plain, _ := newTestFormatter(FormatText)
	if got := plain.Colorize("x", ColorRed); got != "x" {
		t.Errorf("Colorize() without color = %q", got)
	}
}

func TestFormatter_Messages(t *testing.T) {
	f, buf := newTestFormatter(FormatText)

	f.Success("saved %d", 2)
	f.Error("failed")
	f.Warning("careful")
	f.Info("note")
	f.Item("Model", "gpt-4o")

	want := "✓ saved 2\n✗ failed\n⚠ careful\nℹ note\n  Model: gpt-4o\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestFormatter_Header(t *testing.T) {
	f, buf := newTestFormatter(FormatText)
	f.Header("Run")
	if buf.String() != "Run\n───\n" {
		t.Errorf("Header() = %q", buf.String())
	}
}

func TestFormatter_Table(t *testing.T) {
	f, buf := newTestFormatter(FormatTable)

	err := f.Table(TableData{
		Columns: []TableColumn{{Header: "MODEL"}, {Header: "TOKENS", Align: AlignRight}},
		Rows: [][]string{
			{"gpt-4o", "1200"},
			{"llama3", "7"},
		},
	})
	if err != nil {
		t.Fatalf("Table: %v", err)
	}

	want := strings.Join([]string{
		"MODEL   TOKENS",
		"------  ------",
		"gpt-4o    1200",
		"llama3       7",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("Table() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestFormatter_TableEmptyColumns(t *testing.T) {
	f, buf := newTestFormatter(FormatTable)
	if err := f.Table(TableData{}); err != nil || buf.Len() != 0 {
		t.Errorf("empty table wrote %q, %v", buf.String(), err)
	}
}

func TestFormatter_Render(t *testing.T) {
	table := TableData{Columns: []TableColumn{{Header: "ID"}}, Rows: [][]string{{"a"}}}
	data := map[string]string{"id": "a"}

	jf, jbuf := newTestFormatter(FormatJSON)
	if err := jf.Render(data, table); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(jbuf.Bytes(), &decoded); err != nil || decoded["id"] != "a" {
		t.Errorf("json render = %q, %v", jbuf.String(), err)
	}

	tf, tbuf := newTestFormatter(FormatText)
	if err := tf.Render(data, table); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(tbuf.String(), "ID\n--\na") {
		t.Errorf("text render = %q", tbuf.String())
	}
}

func TestFormatter_ConcurrentWrites(t *testing.T) {
	f, buf := newTestFormatter(FormatText)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Println("line")
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "line\n"); got != 50 {
		t.Errorf("expected 50 lines, got %d", got)
	}
}
