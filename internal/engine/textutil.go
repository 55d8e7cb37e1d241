package engine

import (
	"html"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// UserAgentChrome is sent where the remote expects a desktop browser.
const UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9_\- ]`)

// SanitizeText decodes HTML entities and normalizes line endings.
func SanitizeText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// SafeFilename turns a page title into an upload filename: only
// letters, digits, '_', '-' and spaces survive, capped at 80 runes, ".pdf" appended.
func SafeFilename(title string) string {
	name := strings.TrimSpace(unsafeFilenameRe.ReplaceAllString(title, ""))
	name = TruncateRunes(name, 80, "")
	if name == "" {
		name = "page"
	}
	return name + ".pdf"
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	if limit <= 0 {
		return s
	}
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}
