// Package metaextract wraps the external ebook-meta/ebook-convert/soffice
// binaries, parsing their textual output into structured metadata.
package metaextract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Timeout bounds every external process invocation in this package.
const Timeout = 240 * time.Second

var (
	titleRe    = regexp.MustCompile(`(?m)^Title\s*:\s*(.+)$`)
	authorsRe  = regexp.MustCompile(`(?m)^Author\(s\)\s*:\s*(.+)$`)
	tagsRe     = regexp.MustCompile(`(?m)^Tags\s*:\s*(.+)$`)
	languageRe = regexp.MustCompile(`(?m)^Languages\s*:\s*(.+)$`)
	seriesRe   = regexp.MustCompile(`(?m)^Series\s*:\s*(.+)$`)
	commentsRe = regexp.MustCompile(`(?m)^Comments\s*:\s*(.+)$`)
	bracketsRe = regexp.MustCompile(`\[[^\]]*\]`)
	seriesIdxRe = regexp.MustCompile(`^(.*?)\s*#([0-9]+(?:\.[0-9]+)?)\s*$`)
)

// ParsedAuthor is one "Last, First" (or bare-name) author parsed out of the
// Author(s) line.
type ParsedAuthor struct {
	LastName  string
	FirstName string
}

// EbookMetadata is everything MetadataExtractor can pull off an ebook file.
type EbookMetadata struct {
	Title       string
	Authors     []ParsedAuthor
	Genres      []string
	Language    string
	Series      string
	SeriesIndex *float64
	CoverFile   string // absolute local path; caller must import it
	Comments    string
}

// Extractor runs the calibre command-line tools to pull metadata out of an
// ebook file.
type Extractor struct {
	EbookMetaBin string
}

// NewExtractor returns an Extractor using the given ebook-meta binary name
// (resolved via PATH unless it is an absolute path).
func NewExtractor(ebookMetaBin string) *Extractor {
	if ebookMetaBin == "" {
		ebookMetaBin = "ebook-meta"
	}
	return &Extractor{EbookMetaBin: ebookMetaBin}
}

// ExtractMetadata runs `ebook-meta <path> [--get-cover <tmp>]` and parses its
// stdout. When extractCover is true, the returned CoverFile is an absolute
// path on the local filesystem; the caller is responsible for importing it
// into the file store and removing the temp file afterward.
func (e *Extractor) ExtractMetadata(ctx context.Context, path string, extractCover bool) (EbookMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{path}
	var coverTmp string
	if extractCover {
		f, err := os.CreateTemp("", "mbs4-cover-*.jpg")
		if err != nil {
			return EbookMetadata{}, errors.WithStack(err)
		}
		coverTmp = f.Name()
		_ = f.Close()
		args = append(args, "--get-cover", coverTmp)
	}

	cmd := exec.CommandContext(ctx, e.EbookMetaBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if coverTmp != "" {
			_ = os.Remove(coverTmp)
		}
		return EbookMetadata{}, errors.Wrapf(err, "ebook-meta failed: %s", strings.TrimSpace(stderr.String()))
	}

	meta := parseEbookMetaOutput(stdout.String())
	if coverTmp != "" {
		if info, statErr := os.Stat(coverTmp); statErr == nil && info.Size() > 0 {
			meta.CoverFile = coverTmp
		} else {
			_ = os.Remove(coverTmp)
		}
	}
	return meta, nil
}

func parseEbookMetaOutput(out string) EbookMetadata {
	var meta EbookMetadata

	if m := titleRe.FindStringSubmatch(out); m != nil {
		meta.Title = strings.TrimSpace(m[1])
	}
	if m := authorsRe.FindStringSubmatch(out); m != nil {
		meta.Authors = parseAuthors(m[1])
	}
	if m := tagsRe.FindStringSubmatch(out); m != nil {
		meta.Genres = splitAndTrim(m[1], ",")
	}
	if m := languageRe.FindStringSubmatch(out); m != nil {
		langs := splitAndTrim(m[1], ",")
		if len(langs) > 0 {
			meta.Language = langs[0]
		}
	}
	if m := seriesRe.FindStringSubmatch(out); m != nil {
		series, idx := parseSeries(m[1])
		meta.Series = series
		meta.SeriesIndex = idx
	}
	if m := commentsRe.FindStringSubmatch(out); m != nil {
		comments := strings.TrimSpace(m[1])
		if len(comments) >= 4 {
			meta.Comments = comments
		}
	}

	return meta
}

func parseAuthors(line string) []ParsedAuthor {
	var authors []ParsedAuthor
	for _, part := range strings.Split(line, "&") {
		part = bracketsRe.ReplaceAllString(part, "")
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		authors = append(authors, parseAuthor(part))
	}
	return authors
}

func parseAuthor(name string) ParsedAuthor {
	if idx := strings.Index(name, ","); idx >= 0 {
		return ParsedAuthor{
			LastName:  strings.TrimSpace(name[:idx]),
			FirstName: strings.TrimSpace(name[idx+1:]),
		}
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ParsedAuthor{}
	}
	if len(fields) == 1 {
		return ParsedAuthor{LastName: fields[0]}
	}
	return ParsedAuthor{
		LastName:  fields[len(fields)-1],
		FirstName: strings.Join(fields[:len(fields)-1], " "),
	}
}

// parseSeries recognises "<title> #<index>", falling back to a bare title
// with no index when the "#N" suffix is absent.
func parseSeries(line string) (string, *float64) {
	line = strings.TrimSpace(line)
	if m := seriesIdxRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			return strings.TrimSpace(m[1]), &v
		}
	}
	return line, nil
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
