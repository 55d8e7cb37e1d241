package youtube

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var numberRE = regexp.MustCompile(`\d[\d.,\s\p{Zs}]*`)

var (
	thousandSuffixes = map[string]bool{"k": true, "thousand": true, "тыс": true, "тис": true, "т": true, "tsd": true}
	millionSuffixes  = map[string]bool{"m": true, "million": true, "mln": true, "mio": true, "м": true, "млн": true}
)

// ParseCount reads a human-formatted count such as "1.2K", "15 тыс.",
// "1,234,567" or "3 likes". The last separator is a decimal point when one
// or two digits follow it, otherwise every separator groups thousands.
// Unparseable input yields 0.
func ParseCount(text string) int {
	loc := numberRE.FindStringIndex(text)
	if loc == nil {
		return 0
	}
	token := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text[loc[0]:loc[1]])
	token = strings.TrimRight(token, ".,")

	value := parseNumber(token)
	switch suffixWord(text[loc[1]:]) {
	case "thousand":
		value *= 1e3
	case "million":
		value *= 1e6
	}
	return int(math.Round(value))
}

func parseNumber(token string) float64 {
	intPart, frac := token, ""
	if i := strings.LastIndexAny(token, ".,"); i >= 0 {
		if tail := token[i+1:]; len(tail) >= 1 && len(tail) <= 2 {
			intPart, frac = token[:i], tail
		}
	}
	digits := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)
	if frac != "" {
		digits += "." + frac
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return v
}

// suffixWord classifies the first word after the number as a magnitude.
func suffixWord(rest string) string {
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(rest)
	}
	word := strings.ToLower(rest[:end])
	switch {
	case thousandSuffixes[word]:
		return "thousand"
	case millionSuffixes[word]:
		return "million"
	}
	return ""
}
