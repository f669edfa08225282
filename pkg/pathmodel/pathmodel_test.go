package pathmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidPath_Accepts(t *testing.T) {
	valid := []string{
		"a",
		"a/b",
		"books/Doyle A/Holmes/Holmes.epub",
		strings.Repeat("a", 255),
	}
	for _, raw := range valid {
		t.Run(raw, func(t *testing.T) {
			p, err := NewValidPath(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, p.String())
		})
	}
}

func TestNewValidPath_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"leading slash":      "/a",
		"trailing slash":     "a/",
		"empty segment":      "a//b",
		"dot segment":        "a/./b",
		"dotdot segment":     "a/../b",
		"hidden segment":     "a/.hidden",
		"segment too long":   strings.Repeat("a", 256),
		"too many segments":  strings.Repeat("a/", 11) + "a",
		"backslash":          `a\b`,
		"colon":              "a:b",
		"control char":       "a\x01b",
		"path too long":      strings.Repeat("a/", 2048) + "a",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewValidPath(raw)
			require.Error(t, err)
		})
	}
}

func TestWithPrefixRoundTrip(t *testing.T) {
	prefixes := []Prefix{PrefixUpload, PrefixBooks, PrefixIcons, PrefixConverted}
	paths := []string{"a", "a/b/c", "uuid-thing.epub"}

	for _, prefix := range prefixes {
		for _, raw := range paths {
			p, err := NewValidPath(raw)
			require.NoError(t, err)

			withPrefix, err := p.WithPrefix(prefix)
			require.NoError(t, err)

			back, ok := withPrefix.WithoutPrefix(prefix)
			require.True(t, ok)
			assert.Equal(t, p, back)
		}
	}
}

func TestWithoutPrefix_MismatchedPrefix(t *testing.T) {
	p, err := NewValidPath("books/foo.epub")
	require.NoError(t, err)

	_, ok := p.WithoutPrefix(PrefixUpload)
	assert.False(t, ok)
}

func TestUploadPath(t *testing.T) {
	p, err := UploadPath(".epub")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.String(), "upload/"))
	assert.True(t, strings.HasSuffix(p.String(), ".epub"))

	p2, err := UploadPath("epub")
	require.NoError(t, err)
	assert.NotEqual(t, p.String(), p2.String())
}

func TestDirAndBase(t *testing.T) {
	p, err := NewValidPath("a/b/c.epub")
	require.NoError(t, err)
	assert.Equal(t, "c.epub", p.Base())

	dir, ok := p.Dir()
	require.True(t, ok)
	assert.Equal(t, "a/b", dir.String())

	single, err := NewValidPath("c.epub")
	require.NoError(t, err)
	_, ok = single.Dir()
	assert.False(t, ok)
}
