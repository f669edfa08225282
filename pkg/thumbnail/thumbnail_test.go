package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

func newTestStore(t *testing.T) *fsstore.Store {
	t.Helper()
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	return store
}

func storeTestCover(t *testing.T, store *fsstore.Store, w, h int) pathmodel.ValidPath {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	cover, err := pathmodel.NewValidPath("books/test/cover.png")
	require.NoError(t, err)
	_, err = store.StoreDataOverwrite(cover, buf.Bytes())
	require.NoError(t, err)
	return cover
}

func TestLoadOrGenerate_ScalesDownLandscapeCover(t *testing.T) {
	store := newTestStore(t)
	cover := storeTestCover(t, store, 800, 400)

	data, err := LoadOrGenerate(store, cover, 42)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 128, bounds.Dx())
	assert.Equal(t, 64, bounds.Dy())
}

func TestLoadOrGenerate_LeavesSmallCoverUnscaled(t *testing.T) {
	store := newTestStore(t)
	cover := storeTestCover(t, store, 64, 32)

	data, err := LoadOrGenerate(store, cover, 7)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 64, bounds.Dx())
	assert.Equal(t, 32, bounds.Dy())
}

func TestLoadOrGenerate_CachesOnDisk(t *testing.T) {
	store := newTestStore(t)
	cover := storeTestCover(t, store, 300, 300)

	first, err := LoadOrGenerate(store, cover, 1)
	require.NoError(t, err)

	iconPath, err := pathmodel.NewValidPath("1.png")
	require.NoError(t, err)
	iconPath, err = iconPath.WithPrefix(pathmodel.PrefixIcons)
	require.NoError(t, err)

	cached, err := store.LoadData(iconPath)
	require.NoError(t, err)
	defer cached.Close()

	// A second call must hit the cache, not re-decode the cover - if the
	// cover were deleted here the call would still succeed.
	require.NoError(t, store.Delete(cover))
	second, err := LoadOrGenerate(store, cover, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFitDimensions(t *testing.T) {
	w, h := fitDimensions(256, 128, 128, 128)
	assert.Equal(t, 128, w)
	assert.Equal(t, 64, h)

	w, h = fitDimensions(64, 64, 128, 128)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)
}
