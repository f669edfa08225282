// Package pathmodel implements the typed, validated relative path used by
// every other component that touches the file store. Nothing downstream of
// this package ever sees a raw, unvalidated path string.
package pathmodel

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Prefix is one of the store's namespace roots.
type Prefix string

const (
	PrefixUpload    Prefix = "upload"
	PrefixBooks     Prefix = "books"
	PrefixIcons     Prefix = "icons"
	PrefixConverted Prefix = "converted"
)

const (
	maxPathBytes    = 4095
	maxSegments     = 10
	maxSegmentBytes = 255
)

// ErrInvalidPath is returned (wrapped) for every rule violation in NewValidPath.
var ErrInvalidPath = errors.New("invalid path")

// ValidPath is an immutable, validated relative path. The zero value is not
// usable; always construct via NewValidPath or UploadPath.
type ValidPath struct {
	raw string
}

// String returns the underlying path string.
func (p ValidPath) String() string {
	return p.raw
}

// IsZero reports whether p is the unconstructed zero value.
func (p ValidPath) IsZero() bool {
	return p.raw == ""
}

// NewValidPath validates raw against the rules in the data model: non-empty,
// <=4095 bytes total, <=10 '/'-separated segments, each segment <=255 bytes,
// no segment equal to "." or "..", no leading '/', no segment containing
// '\\', ':', or an ASCII control character.
func NewValidPath(raw string) (ValidPath, error) {
	if raw == "" {
		return ValidPath{}, errors.Wrap(ErrInvalidPath, "path is empty")
	}
	if len(raw) > maxPathBytes {
		return ValidPath{}, errors.Wrapf(ErrInvalidPath, "path exceeds %d bytes", maxPathBytes)
	}
	if strings.HasPrefix(raw, "/") || strings.HasSuffix(raw, "/") {
		return ValidPath{}, errors.Wrap(ErrInvalidPath, "path must not start or end with '/'")
	}

	segments := strings.Split(raw, "/")
	if len(segments) > maxSegments {
		return ValidPath{}, errors.Wrapf(ErrInvalidPath, "path has more than %d segments", maxSegments)
	}

	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return ValidPath{}, err
		}
	}

	return ValidPath{raw: raw}, nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return errors.Wrap(ErrInvalidPath, "path contains an empty segment")
	}
	if seg == "." || seg == ".." {
		return errors.Wrapf(ErrInvalidPath, "path contains a %q segment", seg)
	}
	if strings.HasPrefix(seg, ".") {
		return errors.Wrap(ErrInvalidPath, "path segment must not start with '.'")
	}
	if len(seg) > maxSegmentBytes {
		return errors.Wrapf(ErrInvalidPath, "path segment exceeds %d bytes", maxSegmentBytes)
	}
	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return errors.Wrap(ErrInvalidPath, "path segment contains a control character")
		}
		switch r {
		case '\\', ':':
			return errors.Wrapf(ErrInvalidPath, "path segment contains disallowed character %q", r)
		}
	}
	return nil
}

// WithPrefix returns a new ValidPath with prefix prepended as its own leading
// segment (p.WithPrefix(k).WithoutPrefix(k) == p for every valid p and k).
func (p ValidPath) WithPrefix(prefix Prefix) (ValidPath, error) {
	return NewValidPath(string(prefix) + "/" + p.raw)
}

// WithoutPrefix strips prefix from the head of p, returning (tail, true) if
// the head matched, or (zero, false) otherwise.
func (p ValidPath) WithoutPrefix(prefix Prefix) (ValidPath, bool) {
	head := string(prefix) + "/"
	if !strings.HasPrefix(p.raw, head) {
		return ValidPath{}, false
	}
	tail, err := NewValidPath(strings.TrimPrefix(p.raw, head))
	if err != nil {
		return ValidPath{}, false
	}
	return tail, true
}

// UploadPath mints a fresh upload/<uuidv4>.<ext> path.
func UploadPath(ext string) (ValidPath, error) {
	ext = strings.TrimPrefix(ext, ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return NewValidPath("upload/" + name)
}

// Segments returns the '/'-separated components of the path.
func (p ValidPath) Segments() []string {
	return strings.Split(p.raw, "/")
}

// Dir returns the parent ValidPath, or false if p has only one segment.
func (p ValidPath) Dir() (ValidPath, bool) {
	idx := strings.LastIndex(p.raw, "/")
	if idx < 0 {
		return ValidPath{}, false
	}
	dir, err := NewValidPath(p.raw[:idx])
	if err != nil {
		return ValidPath{}, false
	}
	return dir, true
}

// Base returns the final segment of the path.
func (p ValidPath) Base() string {
	idx := strings.LastIndex(p.raw, "/")
	if idx < 0 {
		return p.raw
	}
	return p.raw[idx+1:]
}

// Join appends a child segment (or sub-path) to p.
func Join(p ValidPath, child string) (ValidPath, error) {
	return NewValidPath(p.raw + "/" + child)
}
