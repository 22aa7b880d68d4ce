package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// wordCounter counts one token per whitespace-separated word.
var wordCounter = provider.TokenEstimatorFunc(func(s string) int {
	return len(strings.Fields(s))
})

// runeCounter counts one token per character.
var runeCounter = provider.TokenEstimatorFunc(func(s string) int {
	return utf8.RuneCountInString(s)
})

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestTruncate(t *testing.T) {
	c := New(wordCounter)

	tests := []struct {
		name      string
		text      string
		max       int
		want      string
		wantWords int
	}{
		{"fits unchanged", "alpha beta  gamma\n", 3, "alpha beta  gamma\n", 3},
		{"empty", "", 5, "", 0},
		{"cut at word", "alpha beta gamma delta", 2, "alpha beta", 2},
		{"keeps inner whitespace", "alpha\n\nbeta gamma", 2, "alpha\n\nbeta", 2},
		{"zero budget", "alpha beta", 0, "", 0},
		{"negative budget", "alpha beta", -3, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Truncate(tt.text, tt.max)
			if got != tt.want {
				t.Errorf("Truncate() = %q, want %q", got, tt.want)
			}
			if n := wordCounter(got); n != tt.wantWords {
				t.Errorf("word count = %d, want %d", n, tt.wantWords)
			}
			if !strings.HasPrefix(tt.text, got) {
				t.Errorf("result %q is not a prefix of the input", got)
			}
		})
	}
}

func TestTruncate_BudgetScenario(t *testing.T) {
	c := New(wordCounter)
	text := words(250)

	got := c.Truncate(text, 80)

	if n := wordCounter(got); n > 80 {
		t.Fatalf("truncated content has %d tokens, want <= 80", n)
	}
	if n := wordCounter(got); n != 80 {
		t.Errorf("expected the longest fitting prefix (80 words), got %d", n)
	}
	if !strings.HasSuffix(got, "w79") {
		t.Errorf("truncation cut inside a word: ...%q", got[len(got)-5:])
	}
}

func TestTruncate_NeverCutsInsideWord(t *testing.T) {
	c := New(runeCounter)
	text := "internationalization is long"

	got := c.Truncate(text, 24)
	if got != "internationalization is" {
		t.Errorf("Truncate() = %q", got)
	}

	if got := c.Truncate(text, 10); got != "" {
		t.Errorf("expected empty result when the first word does not fit, got %q", got)
	}
}

func TestSplit_Reconstructs(t *testing.T) {
	c := New(wordCounter)

	inputs := []string{
		words(250),
		"  leading space and trailing space  ",
		"para one line one\nline two\n\npara two\tis here.  Next sentence!",
		"single",
		"a  b\n\nc d",
		"   ",
	}

	for _, in := range inputs {
		for _, budget := range []int{1, 2, 3, 7, 80, 1000} {
			t.Run(fmt.Sprintf("%d/%q", budget, truncateName(in)), func(t *testing.T) {
				chunks, err := c.Split(in, budget)
				if err != nil {
					t.Fatalf("Split() error: %v", err)
				}

				var b strings.Builder
				for i, ch := range chunks {
					if ch.Index != i {
						t.Errorf("chunk %d has index %d", i, ch.Index)
					}
					if ch.Tokens != wordCounter(ch.Text) {
						t.Errorf("chunk %d reports %d tokens, counted %d", i, ch.Tokens, wordCounter(ch.Text))
					}
					if ch.Tokens > budget {
						t.Errorf("chunk %d has %d tokens, budget %d", i, ch.Tokens, budget)
					}
					b.WriteString(ch.Text)
				}
				if b.String() != in {
					t.Errorf("reconstruction mismatch:\n got %q\nwant %q", b.String(), in)
				}

				total := wordCounter(in)
				minimal := (total + budget - 1) / budget
				if total == 0 {
					minimal = 1
				}
				if len(chunks) != minimal {
					t.Errorf("got %d chunks, minimal is %d", len(chunks), minimal)
				}
			})
		}
	}
}

func TestSplit_BudgetScenario(t *testing.T) {
	c := New(wordCounter)

	chunks, err := c.Split(words(250), 80)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	want := []int{80, 80, 80, 10}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, ch := range chunks {
		if ch.Tokens != want[i] {
			t.Errorf("chunk %d: %d tokens, want %d", i, ch.Tokens, want[i])
		}
	}
	if !strings.HasPrefix(chunks[1].Text, "w80 ") {
		t.Errorf("second chunk should start at w80, got %q", chunks[1].Text[:8])
	}
}

func TestSplit_Empty(t *testing.T) {
	chunks, err := New(wordCounter).Split("", 10)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplit_InvalidBudget(t *testing.T) {
	for _, budget := range []int{0, -1} {
		_, err := New(wordCounter).Split("some words", budget)
		if !errors.Is(err, errors.ErrNegativeBudget) {
			t.Errorf("budget %d: expected ErrNegativeBudget, got %v", budget, err)
		}
		if !errors.IsConfiguration(err) {
			t.Errorf("budget %d: expected configuration error", budget)
		}
	}
}

func TestSplit_OversizedWord(t *testing.T) {
	c := New(runeCounter)
	text := "ab abcdefghijkl cd"

	chunks, err := c.Split(text, 5)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	var got []string
	for _, ch := range chunks {
		if ch.Tokens > 5 {
			t.Errorf("chunk %q exceeds budget", ch.Text)
		}
		got = append(got, ch.Text)
	}
	if strings.Join(got, "") != text {
		t.Fatalf("reconstruction mismatch: %q", got)
	}

	want := []string{"ab ", "abcde", "fghij", "kl cd"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplit_MultibyteHardCut(t *testing.T) {
	c := New(runeCounter)
	text := "日本語のテキスト"

	chunks, err := c.Split(text, 3)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	var b strings.Builder
	for _, ch := range chunks {
		if !utf8.ValidString(ch.Text) {
			t.Errorf("chunk %q is not valid UTF-8", ch.Text)
		}
		b.WriteString(ch.Text)
	}
	if b.String() != text {
		t.Errorf("reconstruction mismatch: %q", b.String())
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
}

func TestSplit_CharacterLargerThanBudget(t *testing.T) {
	heavy := provider.TokenEstimatorFunc(func(s string) int { return 2 * utf8.RuneCountInString(s) })

	_, err := New(heavy).Split("abc", 1)
	if !errors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestDeterminism(t *testing.T) {
	c := New(wordCounter)
	text := words(123)

	first, _ := c.Split(text, 17)
	second, _ := c.Split(text, 17)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs", i)
		}
	}

	if c.Truncate(text, 40) != c.Truncate(text, 40) {
		t.Error("Truncate is not deterministic")
	}
}

func TestWordStarts(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"", []int{0}},
		{"one", []int{3}},
		{"one two", []int{4, 7}},
		{"  one  two ", []int{7, 11}},
		{"a\n\nb", []int{3, 4}},
	}

	for _, tt := range tests {
		got := wordStarts(tt.text)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("wordStarts(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func truncateName(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
