// Package search implements title and full-text lookup over persisted
// records. Title search reads only the index; detail search scans every
// document, strips markdown markup and ranks by occurrence count.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrlog/adrlog/internal/record"
	"github.com/adrlog/adrlog/internal/store"
)

// ExcerptRadius is how many characters of context a detail match keeps on
// each side of the first occurrence.
const ExcerptRadius = 300

// TitleMatch pairs a record title with its id.
type TitleMatch struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// Titles returns records whose title contains the keyword,
// case-insensitively, ordered by creation date descending. Same-day ties
// break by id ascending so the order is deterministic.
func Titles(st *store.Store, keyword string) ([]TitleMatch, error) {
	idx, err := st.Index()
	if err != nil {
		return nil, err
	}

	entries := make([]record.Meta, 0, len(idx.Items))
	for _, item := range idx.Items {
		entries = append(entries, item)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}

		return entries[i].ID < entries[j].ID
	})

	needle := strings.ToLower(keyword)

	var matches []TitleMatch

	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Title), needle) {
			matches = append(matches, TitleMatch{Title: entry.Title, ID: entry.ID})
		}
	}

	return matches, nil
}

// DetailMatch is one document's full-text search result.
type DetailMatch struct {
	ID          string `json:"id"`
	Occurrences int    `json:"occurrences"`
	Offset      int    `json:"offset"`
	Excerpt     string `json:"excerpt"`
}

// Details scans every persisted document for the keyword. Results are
// ordered by occurrence count descending, then first-match offset
// ascending, then id so equal documents keep a stable order.
func Details(st *store.Store, keyword string) ([]DetailMatch, error) {
	idx, err := st.Index()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	if needle == "" {
		return nil, nil
	}

	var matches []DetailMatch

	for id := range idx.Items {
		data, readErr := st.Document(id)
		if readErr != nil {
			// Index entry without a document: skip rather than fail the
			// whole search over one missing projection.
			continue
		}

		plain := StripMarkdown(string(data))
		haystack := strings.ToLower(plain)

		count := strings.Count(haystack, needle)
		if count == 0 {
			continue
		}

		offset := strings.Index(haystack, needle)

		matches = append(matches, DetailMatch{
			ID:          id,
			Occurrences: count,
			Offset:      offset,
			Excerpt:     excerpt(plain, offset, len(needle)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Occurrences != matches[j].Occurrences {
			return matches[i].Occurrences > matches[j].Occurrences
		}

		if matches[i].Offset != matches[j].Offset {
			return matches[i].Offset < matches[j].Offset
		}

		return matches[i].ID < matches[j].ID
	})

	return matches, nil
}

var (
	headingMarkers  = regexp.MustCompile(`(?m)^#{1,6}[ \t]*`)
	emphasisMarkers = regexp.MustCompile(`(\*\*|__|\*|_)`)
	inlineCode      = regexp.MustCompile("`+")
	linkSyntax      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// StripMarkdown removes structural markup so substring matching and
// excerpts operate on plain text: heading markers, emphasis markers,
// inline code markers and link syntax (keeping the link text).
func StripMarkdown(s string) string {
	s = headingMarkers.ReplaceAllString(s, "")
	s = linkSyntax.ReplaceAllString(s, "$1")
	s = emphasisMarkers.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "")

	return s
}

// excerpt returns up to [ExcerptRadius] characters on each side of the
// match at offset. Cut points move outward to the nearest rune boundary
// so the excerpt is always valid UTF-8.
func excerpt(plain string, offset, matchLen int) string {
	start := max(offset-ExcerptRadius, 0)
	end := min(offset+matchLen+ExcerptRadius, len(plain))

	for start > 0 && !utf8.RuneStart(plain[start]) {
		start--
	}

	for end < len(plain) && !utf8.RuneStart(plain[end]) {
		end++
	}

	return plain[start:end]
}
