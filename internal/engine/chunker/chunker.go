// Package chunker splits an ordered list of indivisible text units into
// documents under a soft word budget.
package chunker

import (
	"fmt"
	"strings"
)

// DefaultMaxWords is the per-part word budget used when Options.MaxWords is unset.
const DefaultMaxWords = 400000

// Options controls splitting and the continuation-part header.
type Options struct {
	MaxWords  int
	Title     string // continuation header: "# <Title> — Part i of N"
	UnitLabel string // continuation header: "<UnitLabel>: a–b"
}

// Part is one output document. FirstUnit and LastUnit are 1-based and inclusive.
type Part struct {
	Index     int
	Total     int
	FirstUnit int
	LastUnit  int
	Text      string
}

// Split groups units into parts. A unit is never divided, even when it alone
// exceeds MaxWords. Part 1 (or the only part) starts with header; later
// parts get a short header naming their index and unit range. The header's
// words count against the first part only.
func Split(header string, units []string, opts Options) []Part {
	budget := opts.MaxWords
	if budget <= 0 {
		budget = DefaultMaxWords
	}

	type group struct{ first, last int }
	var groups []group
	cur := group{first: 0, last: -1}
	words := CountWords(header)
	for i, u := range units {
		w := CountWords(u)
		if words+w > budget && cur.last >= cur.first {
			groups = append(groups, cur)
			cur = group{first: i, last: i - 1}
			words = 0
		}
		cur.last = i
		words += w
	}
	if cur.last >= cur.first || len(groups) == 0 {
		groups = append(groups, cur)
	}

	total := len(groups)
	parts := make([]Part, total)
	for i, g := range groups {
		body := strings.Join(units[g.first:g.last+1], "\n")
		var text string
		if i == 0 {
			text = header + body
		} else {
			text = partHeader(opts, i+1, total, g.first+1, g.last+1) + body
		}
		parts[i] = Part{Index: i + 1, Total: total, FirstUnit: g.first + 1, LastUnit: g.last + 1, Text: text}
	}
	return parts
}

func partHeader(opts Options, index, total, first, last int) string {
	return fmt.Sprintf("# %s — Part %d of %d\n%s: %d–%d\n\n===\n", opts.Title, index, total, opts.UnitLabel, first, last)
}

// CountWords counts whitespace-separated fields.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
