// Package chunker cuts page text into token-budgeted pieces at word boundaries.
//
// A cut is only ever placed where a word begins after whitespace, so the
// whitespace that follows a word stays with the piece that contains the word.
// Concatenating the pieces returned by Split yields the input unchanged.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// Chunker truncates and splits text against a token budget.
type Chunker struct {
	counter provider.TokenEstimator
}

// New creates a Chunker that measures text with counter.
func New(counter provider.TokenEstimator) *Chunker {
	return &Chunker{counter: counter}
}

// Truncate returns the longest word-boundary prefix of text whose token count
// is at most maxTokens, without trailing whitespace. Text that already fits is
// returned unchanged. When not even the first word fits the result is empty.
func (c *Chunker) Truncate(text string, maxTokens int) string {
	if c.counter.CountTokens(text) <= maxTokens {
		return text
	}
	if maxTokens <= 0 {
		return ""
	}

	cuts := wordStarts(text)
	k := c.longestFit(text, 0, cuts, 0, maxTokens)
	if k < 0 {
		return ""
	}
	return strings.TrimRightFunc(text[:cuts[k]], unicode.IsSpace)
}

// Split partitions text into the fewest ordered pieces that each fit in
// maxTokens. Empty text yields no chunks. A single word longer than the
// budget is cut between characters, since no word boundary can satisfy it.
func (c *Chunker) Split(text string, maxTokens int) ([]page.Chunk, error) {
	if text == "" {
		return nil, nil
	}
	if maxTokens <= 0 {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeConfiguration, fmt.Sprintf("cannot split into pieces of %d tokens", maxTokens), errors.ErrNegativeBudget),
			"budget", maxTokens)
	}

	cuts := wordStarts(text)
	var chunks []page.Chunk

	from, next := 0, 0
	for from < len(text) {
		for next < len(cuts) && cuts[next] <= from {
			next++
		}

		var end int
		if k := c.longestFit(text, from, cuts, next, maxTokens); k >= 0 {
			end = cuts[k]
		} else {
			var err error
			end, err = c.hardCut(text, from, cuts[next], maxTokens)
			if err != nil {
				return nil, err
			}
		}

		piece := text[from:end]
		chunks = append(chunks, page.Chunk{
			Index:  len(chunks),
			Text:   piece,
			Tokens: c.counter.CountTokens(piece),
		})
		from = end
	}

	return chunks, nil
}

// wordStarts returns the byte offsets where a cut may be placed: every
// position where a word starts after whitespace that itself follows a word,
// plus len(text).
func wordStarts(text string) []int {
	var cuts []int
	seenWord, prevSpace := false, false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space {
			if seenWord && prevSpace {
				cuts = append(cuts, i)
			}
			seenWord = true
		}
		prevSpace = space
	}
	return append(cuts, len(text))
}

// longestFit returns the largest index k >= first such that text[from:cuts[k]]
// fits in maxTokens, or -1 when cuts[first] already overflows. It gallops
// forward to bracket the answer, then bisects, so the cost grows with the
// piece size rather than with the remaining text.
func (c *Chunker) longestFit(text string, from int, cuts []int, first, maxTokens int) int {
	fits := func(k int) bool {
		return c.counter.CountTokens(text[from:cuts[k]]) <= maxTokens
	}

	last := len(cuts) - 1
	if first > last || !fits(first) {
		return -1
	}

	best := first
	step := 1
	for {
		probe := best + step
		if probe > last {
			break
		}
		if !fits(probe) {
			last = probe - 1
			break
		}
		best = probe
		step *= 2
	}

	lo, hi := best+1, last
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// hardCut finds the longest run of whole characters starting at from and
// ending no later than limit that fits in maxTokens.
func (c *Chunker) hardCut(text string, from, limit, maxTokens int) (int, error) {
	var ends []int
	for i := from; i < limit; {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		ends = append(ends, i)
	}

	best := -1
	lo, hi := 0, len(ends)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if c.counter.CountTokens(text[from:ends[mid]]) <= maxTokens {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if best < 0 {
		return 0, errors.WithContext(
			errors.NewError(errors.CodeConfiguration,
				fmt.Sprintf("a single character exceeds the budget of %d tokens", maxTokens), errors.ErrNegativeBudget),
			"offset", from)
	}
	return ends[best], nil
}
