package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opts = Options{Title: "YouTube Comments", UnitLabel: "comments"}

func units(n, wordsEach int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("u%d %s\n", i+1, strings.Repeat("w ", wordsEach-1))
	}
	return out
}

func TestSplitSinglePart(t *testing.T) {
	header := "# Title\n\n===\n"
	us := units(3, 5)
	o := opts
	o.MaxWords = 100

	parts := Split(header, us, o)
	require.Len(t, parts, 1)
	assert.Equal(t, header+strings.Join(us, "\n"), parts[0].Text)
	assert.Equal(t, 1, parts[0].FirstUnit)
	assert.Equal(t, 3, parts[0].LastUnit)
}

func TestSplitHeaderCountsTowardFirstPart(t *testing.T) {
	o := opts
	o.MaxWords = 8

	plain := Split("", units(3, 4), o)
	require.Len(t, plain, 2)
	assert.Equal(t, 2, plain[0].LastUnit)

	header := "one two three four five six\n"
	withHeader := Split(header, units(3, 4), o)
	require.Len(t, withHeader, 2)
	assert.Equal(t, 1, withHeader[0].LastUnit)
	assert.True(t, strings.HasPrefix(withHeader[0].Text, header))
	assert.True(t, strings.HasPrefix(withHeader[1].Text, "# YouTube Comments — Part 2 of 2\ncomments: 2–3\n\n===\n"))
}

func TestSplitOversizedUnitStaysWhole(t *testing.T) {
	big := "u1 " + strings.Repeat("w ", 50)
	o := opts
	o.MaxWords = 10

	parts := Split("", []string{big, "u2 x"}, o)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, big)
	assert.Equal(t, 1, parts[0].LastUnit)
	assert.Equal(t, 2, parts[1].FirstUnit)
}

func TestSplitNeverDividesUnitsAndIsStable(t *testing.T) {
	us := units(40, 7)
	o := opts
	o.MaxWords = 50

	first := Split("# H\n", us, o)
	second := Split("# H\n", us, o)
	require.Equal(t, len(first), len(second))
	require.Greater(t, len(first), 1)

	next := 1
	for i, p := range first {
		assert.Equal(t, second[i].FirstUnit, p.FirstUnit)
		assert.Equal(t, second[i].LastUnit, p.LastUnit)
		assert.Equal(t, next, p.FirstUnit, "ranges must be contiguous")
		assert.Equal(t, len(first), p.Total)
		for u := p.FirstUnit; u <= p.LastUnit; u++ {
			assert.Contains(t, p.Text, us[u-1])
		}
		next = p.LastUnit + 1
	}
	assert.Equal(t, len(us)+1, next)
}

func TestSplitEmptyUnits(t *testing.T) {
	parts := Split("# H\n", nil, opts)
	require.Len(t, parts, 1)
	assert.Equal(t, "# H\n", parts[0].Text)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords("  \n\t"))
	assert.Equal(t, 3, CountWords("a  b\nc"))
}
