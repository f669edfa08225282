// Package naming derives canonical, filesystem-safe directory and file names
// from ebook attributes. Every function here is pure and deterministic.
package naming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AuthorName is the minimal shape naming needs from an author.
type AuthorName struct {
	LastName  string
	FirstName string
}

// EbookAttrs is the minimal shape naming needs from an ebook to compute its
// base directory and filename.
type EbookAttrs struct {
	Title        string
	Authors      []AuthorName
	Series       string
	SeriesIndex  *float64
	LanguageCode string
	Extension    string
}

// diacriticsFoldMap lists transliterations the generic NFKD fold doesn't
// produce on its own (NFKD decomposes accents but keeps the base letter for
// things like a cedilla; a handful of European letters decompose to a
// digraph or an unrelated base letter instead).
var diacriticsFoldMap = map[rune]string{
	'Æ': "AE", 'æ': "ae",
	'Ð': "D", 'ð': "d",
	'Ø': "O", 'ø': "o",
	'Þ': "Th", 'þ': "th",
	'ß': "s",
	'Đ': "D", 'đ': "d",
	'Ħ': "H", 'ħ': "h",
	'ı': "i",
	'ĸ': "k",
	'Ł': "L", 'ł': "l",
	'Ŋ': "N", 'ŋ': "n",
	'Œ': "Oe", 'œ': "oe",
	'Ŧ': "T", 'ŧ': "t",
}

var disallowedSeparators = regexp.MustCompile("[:*%|\"<>?`]")
var multiSpace = regexp.MustCompile(`\s{2,}`)

// FoldDiacritics transliterates s to plain ASCII: known digraphs via a fixed
// map, everything else via NFKD decomposition plus a combining-mark strip;
// any remaining non-ASCII rune collapses to a single space.
func FoldDiacritics(s string) string {
	var b strings.Builder
	for _, r := range s {
		if repl, ok := diacriticsFoldMap[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, b.String())
	if err != nil {
		folded = b.String()
	}

	var out strings.Builder
	for _, r := range folded {
		if r <= unicode.MaxASCII {
			out.WriteRune(r)
			continue
		}
		out.WriteRune(' ')
	}
	return out.String()
}

// sanitizeForFilename strips characters the data model reserves for the
// path separator scheme, removes control characters, collapses whitespace,
// and trims trailing dots/spaces (problematic on some filesystems).
func sanitizeForFilename(s string) string {
	s = FoldDiacritics(s)
	s = disallowedSeparators.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, " .")
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = strings.TrimSpace(s[:200])
	}
	return s
}

// authorComponent implements the §4.8 author-count tiering: one author is
// "Last First"; 2-3 authors abbreviate first names to initials; 4+ join the
// first three the same way and append " and others".
func authorComponent(authors []AuthorName) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authorString(authors[0], false)
	case 2, 3:
		return joinInitials(authors)
	default:
		return joinInitials(authors[:3]) + " and others"
	}
}

func joinInitials(authors []AuthorName) string {
	parts := make([]string, len(authors))
	for i, a := range authors {
		parts[i] = authorString(a, true)
	}
	return strings.Join(parts, ", ")
}

func authorString(a AuthorName, initials bool) string {
	first := a.FirstName
	if initials && first != "" {
		first = string([]rune(first)[0])
	}
	if first == "" {
		return a.LastName
	}
	if initials {
		return fmt.Sprintf("%s %s", a.LastName, first)
	}
	return fmt.Sprintf("%s %s", a.LastName, first)
}

// seriesAndTitle renders the "<series>/<series> <index> - <title>(<lang>)"
// sub-path segment pair, or just "<title>(<lang>)" when there is no series.
func seriesAndTitle(attrs EbookAttrs) (seriesDir string, titlePart string) {
	title := sanitizeForFilename(attrs.Title)
	lang := sanitizeForFilename(attrs.LanguageCode)

	if attrs.Series == "" {
		return "", fmt.Sprintf("%s(%s)", title, lang)
	}

	series := sanitizeForFilename(attrs.Series)
	index := formatSeriesIndex(attrs.SeriesIndex)
	return series, fmt.Sprintf("%s %s - %s(%s)", series, index, title, lang)
}

func formatSeriesIndex(idx *float64) string {
	if idx == nil {
		return "0"
	}
	if *idx == float64(int64(*idx)) {
		return fmt.Sprintf("%d", int64(*idx))
	}
	return fmt.Sprintf("%g", *idx)
}

// EbookBaseDir composes the canonical base_dir for an ebook: the author
// component, then (if a series exists) the series sub-path, joined with '/'.
func EbookBaseDir(attrs EbookAttrs) string {
	authorDir := sanitizeForFilename(authorComponent(attrs.Authors))
	seriesDir, titlePart := seriesAndTitle(attrs)

	if seriesDir == "" {
		return fmt.Sprintf("%s/%s", authorDir, titlePart)
	}
	return fmt.Sprintf("%s/%s/%s", authorDir, seriesDir, titlePart)
}

// NormFileName composes the canonical basename for a source file of attrs,
// e.g. "Priserne J, Zlutoucky Z - ody 1 - Pel dabelske.epub".
func NormFileName(attrs EbookAttrs) string {
	authorStr := sanitizeForFilename(authorComponent(attrs.Authors))
	title := sanitizeForFilename(attrs.Title)
	ext := strings.TrimPrefix(attrs.Extension, ".")

	if attrs.Series == "" {
		return fmt.Sprintf("%s - %s.%s", authorStr, title, ext)
	}

	series := sanitizeForFilename(attrs.Series)
	index := formatSeriesIndex(attrs.SeriesIndex)
	return fmt.Sprintf("%s - %s %s - %s.%s", authorStr, series, index, title, ext)
}
