package viewer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	blockTagRe = regexp.MustCompile(`(?i)</?(?:p|div|br|h[1-6]|li|tr|section|article|blockquote)[^>]*>`)
	anyTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
)

// documentTitle pulls the title element's text, empty when absent.
func documentTitle(html string) string {
	m := titleTagRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(entityReplacer.Replace(m[1]))
}

// plainText strips markup for content search: block-level tags become line
// breaks, remaining tags are dropped, entities are decoded and blank lines
// collapsed.
func plainText(html string) string {
	text := blockTagRe.ReplaceAllString(html, "\n")
	text = anyTagRe.ReplaceAllString(text, "")
	text = entityReplacer.Replace(text)

	lines := strings.Split(text, "\n")
	clean := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// foldIndex reports the first case-insensitive match of query in s as byte
// bounds into s itself. Bounds stay rune-aligned even when case folding
// changes a rune's encoded length, so callers can slice s safely.
func foldIndex(s, query string) (start, end int, ok bool) {
	for i := range s {
		if n, ok := foldPrefix(s[i:], query); ok {
			return i, i + n, true
		}
	}
	return 0, 0, false
}

// foldPrefix reports whether s starts with a case-insensitive match of query,
// and how many bytes of s the match spans.
func foldPrefix(s, query string) (int, bool) {
	n := 0
	for _, qr := range query {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || unicode.ToLower(sr) != unicode.ToLower(qr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

// SearchText implements ContentSearcher: a case-insensitive substring
// search over the plain text of every spine item. Matched terms are marked
// with ** in the snippet. Items that cannot be read are skipped, not fatal.
func (v *EPUBViewer) SearchText(query string, limit, offset int) ([]TextMatch, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	matches := make([]TextMatch, 0)
	if strings.TrimSpace(query) == "" {
		return matches, nil
	}

	for i, item := range v.spine {
		data, err := v.spineBytes(i)
		if err != nil {
			continue
		}
		html := string(data)
		pageTitle := documentTitle(html)
		if pageTitle == "" {
			pageTitle = item.Title
		}
		for para := range strings.SplitSeq(plainText(html), "\n") {
			start, end, ok := foldIndex(para, query)
			if !ok {
				continue
			}
			matches = append(matches, TextMatch{
				Page:      i,
				PageTitle: pageTitle,
				Snippet:   para[:start] + "**" + para[start:end] + "**" + para[end:],
			})
		}
	}

	if offset > 0 {
		if offset >= len(matches) {
			return []TextMatch{}, nil
		}
		matches = matches[offset:]
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
