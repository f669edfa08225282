package metaextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `Title               : The Adventures of Sherlock Holmes
Author(s)           : Arthur Conan Doyle [Doyle, Arthur Conan]
Tags                : Fiction, Mystery, Detective
Languages           : eng
Series              : Sherlock Holmes #3
Comments            : A collection of short stories.
`

func TestParseEbookMetaOutput(t *testing.T) {
	meta := parseEbookMetaOutput(sampleOutput)

	assert.Equal(t, "The Adventures of Sherlock Holmes", meta.Title)
	require.Len(t, meta.Authors, 1)
	assert.Equal(t, "Doyle", meta.Authors[0].LastName)
	assert.Equal(t, "Arthur Conan", meta.Authors[0].FirstName)
	assert.Equal(t, []string{"Fiction", "Mystery", "Detective"}, meta.Genres)
	assert.Equal(t, "eng", meta.Language)
	assert.Equal(t, "Sherlock Holmes", meta.Series)
	require.NotNil(t, meta.SeriesIndex)
	assert.Equal(t, 3.0, *meta.SeriesIndex)
	assert.Equal(t, "A collection of short stories.", meta.Comments)
}

func TestParseAuthors_MultipleAmpersand(t *testing.T) {
	authors := parseAuthors("Jane Doe & John Smith")
	require.Len(t, authors, 2)
	assert.Equal(t, "Doe", authors[0].LastName)
	assert.Equal(t, "Jane", authors[0].FirstName)
	assert.Equal(t, "Smith", authors[1].LastName)
}

func TestParseAuthor_CommaForm(t *testing.T) {
	a := parseAuthor("Doyle, Arthur Conan")
	assert.Equal(t, "Doyle", a.LastName)
	assert.Equal(t, "Arthur Conan", a.FirstName)
}

func TestParseAuthor_SingleName(t *testing.T) {
	a := parseAuthor("Voltaire")
	assert.Equal(t, "Voltaire", a.LastName)
	assert.Empty(t, a.FirstName)
}

func TestParseSeries_NoIndex(t *testing.T) {
	series, idx := parseSeries("Foundation")
	assert.Equal(t, "Foundation", series)
	assert.Nil(t, idx)
}

func TestParseEbookMetaOutput_ShortCommentsDiscarded(t *testing.T) {
	out := "Title               : X\nComments            : Hi\n"
	meta := parseEbookMetaOutput(out)
	assert.Empty(t, meta.Comments)
}
