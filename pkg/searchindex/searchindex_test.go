package searchindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	idx.Start()
	t.Cleanup(func() {
		require.NoError(t, idx.Close())
	})
	return idx
}

func TestUpsertAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	need, err := idx.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, need)

	err = idx.Upsert(ctx, []Document{
		{Kind: KindEbook, ID: 1, Title: "A Study in Scarlet", Authors: []string{"Arthur Conan Doyle"}},
		{Kind: KindEbook, ID: 2, Title: "The Hound of the Baskervilles", Authors: []string{"Arthur Conan Doyle"}},
		{Kind: KindAuthor, ID: 1, Title: "Arthur Conan Doyle"},
	})
	require.NoError(t, err)

	need, err = idx.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, need)

	results, err := idx.Search(ctx, "scarlet", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, KindEbook, results[0].Kind)

	results, err = idx.Search(ctx, "doyle", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	doc := Document{Kind: KindEbook, ID: 1, Title: "Original Title"}
	require.NoError(t, idx.Upsert(ctx, []Document{doc}))

	doc.Title = "Renamed Title"
	require.NoError(t, idx.Upsert(ctx, []Document{doc}))

	results, err := idx.Search(ctx, "original", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "renamed", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDelete(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Document{{Kind: KindSeries, ID: 5, Title: "Sherlock Holmes"}}))
	require.NoError(t, idx.Delete(ctx, []DocKey{{Kind: KindSeries, ID: 5}}))

	results, err := idx.Search(ctx, "sherlock", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRegexPrefix(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Document{
		{Kind: KindEbook, ID: 1, Title: "A Study in Scarlet"},
		{Kind: KindEbook, ID: 2, Title: "Moby Dick"},
	}))

	results, err := idx.Search(ctx, "/^A Study.*$", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestReset(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Document{{Kind: KindEbook, ID: 1, Title: "X"}}))
	require.NoError(t, idx.Reset(ctx))

	need, err := idx.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, need)
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	idx := openTestIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := idx.Upsert(ctx, []Document{{Kind: KindEbook, ID: 1, Title: "X"}})
	require.Error(t, err)
}
