package convertworker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shishobooks/shisho/pkg/eventbus"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/metaextract"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

func TestProcess_UnknownBinaryPublishesErrorEvent(t *testing.T) {
	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	bus := eventbus.New()
	_, ch, cancel := bus.Subscribe()
	defer cancel()

	w := New(metaextract.NewExtractor("/nonexistent/ebook-meta"), store, bus)

	path, err := pathmodel.UploadPath("epub")
	require.NoError(t, err)
	_, err = store.StoreData(path, []byte("not a real epub"))
	require.NoError(t, err)

	w.processSafely(ExtractMetaJob{OperationID: "op-1", FilePath: path, ExtractCover: false})

	select {
	case msg := <-ch:
		require.Equal(t, "extract_meta_error", msg.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}
