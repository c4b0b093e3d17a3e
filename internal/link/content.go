package link

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dgallion1/pagekeep/internal/parser"
)

// hrefAttr matches the start of an href attribute up to its opening quote.
var hrefAttr = regexp.MustCompile(`(?i)^[^>]*?\s+href\s*=\s*(["'])`)

// RewriteContent rewrites the href of every <a> element in text with
// Resolve. A "<a" or closing quote preceded by an odd run of backslashes is
// escaped and not a match. Elements without a well formed href are left as
// they are.
func RewriteContent(text string, origin, dest *url.URL) string {
	lower := asciiLower(text)
	var b strings.Builder
	last, i := 0, 0
	for i < len(text) {
		a := indexUnescaped(lower, i, "<a")
		if a < 0 {
			break
		}
		tagEnd := a + len("<a")
		i = tagEnd
		if tagEnd >= len(text) || !isSpace(text[tagEnd]) {
			continue
		}

		m := hrefAttr.FindStringSubmatchIndex(text[tagEnd:])
		if m == nil {
			continue
		}
		valueStart := tagEnd + m[1]
		quote := text[tagEnd+m[2] : tagEnd+m[3]]
		valueEnd := indexUnescaped(text, valueStart, quote)
		if valueEnd < 0 {
			continue
		}

		old := text[valueStart:valueEnd]
		if res, ok := Resolve(origin, old, dest); ok && res.Href != old {
			b.WriteString(text[last:valueStart])
			b.WriteString(escapeQuote(res.Href, quote))
			last = valueEnd
		}
		i = valueEnd + 1
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// RewriteMarkdown rewrites the inline link and image destinations of a
// markdown text with Resolve. Code and raw HTML are left alone, and only
// the destination bytes of each link change.
func RewriteMarkdown(text string, origin, dest *url.URL) string {
	var b strings.Builder
	last := 0
	for _, l := range parser.MarkdownLinks([]byte(text)) {
		res, ok := Resolve(origin, l.Dest, dest)
		if !ok || res.Href == l.Dest {
			continue
		}
		b.WriteString(text[last:l.Start])
		b.WriteString(escapeMarkdownDest(res.Href, l.Angled))
		last = l.Stop
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// escapeMarkdownDest keeps a rewritten destination from ending early.
func escapeMarkdownDest(href string, angled bool) string {
	if angled {
		return strings.NewReplacer("<", "%3C", ">", "%3E").Replace(href)
	}
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29").Replace(href)
}

// indexUnescaped returns the index of the first pat in s at or after from
// that is not preceded by an odd number of backslashes, or -1.
func indexUnescaped(s string, from int, pat string) int {
	for from < len(s) {
		j := strings.Index(s[from:], pat)
		if j < 0 {
			return -1
		}
		at := from + j
		n := 0
		for k := at - 1; k >= 0 && s[k] == '\\'; k-- {
			n++
		}
		if n%2 == 0 {
			return at
		}
		from = at + len(pat)
	}
	return -1
}

func escapeQuote(href, quote string) string {
	if quote == `"` {
		return strings.ReplaceAll(href, `"`, "%22")
	}
	return strings.ReplaceAll(href, "'", "%27")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// asciiLower lowers ASCII letters only, keeping byte offsets intact.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
