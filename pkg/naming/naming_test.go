package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func float64p(v float64) *float64 { return &v }

func TestEbookBaseDir_SpecScenario(t *testing.T) {
	attrs := EbookAttrs{
		Title: "Pěl ďábelské",
		Authors: []AuthorName{
			{LastName: "Příšerně", FirstName: "Jan"},
			{LastName: "Žluťoučký", FirstName: "Zdeněk"},
		},
		Series:       "ódy",
		SeriesIndex:  float64p(1),
		LanguageCode: "cs",
	}

	assert.Equal(t, "Priserne J, Zlutoucky Z/ody/ody 1 - Pel dabelske(cs)", EbookBaseDir(attrs))

	attrs.Extension = "epub"
	assert.Equal(t, "Priserne J, Zlutoucky Z - ody 1 - Pel dabelske.epub", NormFileName(attrs))
}

func TestEbookBaseDir_NoSeries(t *testing.T) {
	attrs := EbookAttrs{
		Title:        "Dune",
		Authors:      []AuthorName{{LastName: "Herbert", FirstName: "Frank"}},
		LanguageCode: "en",
	}
	assert.Equal(t, "Herbert Frank/Dune(en)", EbookBaseDir(attrs))
}

func TestAuthorComponent_Tiers(t *testing.T) {
	one := []AuthorName{{LastName: "Doyle", FirstName: "Arthur"}}
	assert.Equal(t, "Doyle Arthur", authorComponent(one))

	four := []AuthorName{
		{LastName: "A", FirstName: "One"},
		{LastName: "B", FirstName: "Two"},
		{LastName: "C", FirstName: "Three"},
		{LastName: "D", FirstName: "Four"},
	}
	assert.Equal(t, "A O, B T, C T and others", authorComponent(four))
}

func TestEbookBaseDir_Deterministic(t *testing.T) {
	attrs := EbookAttrs{
		Title:        "Holmes",
		Authors:      []AuthorName{{LastName: "Doyle", FirstName: "Arthur"}},
		LanguageCode: "en",
	}
	a := EbookBaseDir(attrs)
	b := EbookBaseDir(attrs)
	assert.Equal(t, a, b)
}

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "AEneas", FoldDiacritics("Æneas"))
	assert.Equal(t, "Oyvind", FoldDiacritics("Øyvind"))
	assert.Equal(t, "lodz", FoldDiacritics("łódź"))
	assert.Equal(t, "strase", FoldDiacritics("straße"))
	assert.Equal(t, "Hamar", FoldDiacritics("Ħamar"))
	assert.Equal(t, "Nairobi", FoldDiacritics("Ŋairobi"))
}
