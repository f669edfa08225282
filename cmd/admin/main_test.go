package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

func TestClearPrefix_RemovesAndRecreatesDirectory(t *testing.T) {
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	uploadPath, err := pathmodel.NewValidPath("upload/stale.epub")
	require.NoError(t, err)
	_, err = store.StoreData(uploadPath, []byte("stale"))
	require.NoError(t, err)

	root, err := pathmodel.NewValidPath(string(pathmodel.PrefixUpload))
	require.NoError(t, err)
	dir := store.LocalPath(root)

	_, err = os.Stat(filepath.Join(dir, "stale.epub"))
	require.NoError(t, err)

	require.NoError(t, clearPrefix(store, pathmodel.PrefixUpload))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
