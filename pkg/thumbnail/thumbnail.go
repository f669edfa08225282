// Package thumbnail derives and caches the 128x128 cover icon served by
// GET /files/icon/{id}, aspect-preserving per §4.10.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

const iconSize = 128

// LoadOrGenerate returns the cached PNG icon for an ebook's cover, building
// and caching it on first request. Grounded on the teacher's kobo thumbnail
// handler (pkg/kobo/handlers.go), which decodes a cover and scales it with
// golang.org/x/image/draw.BiLinear while preserving aspect ratio.
func LoadOrGenerate(store *fsstore.Store, cover pathmodel.ValidPath, ebookID int64) ([]byte, error) {
	iconPath, err := pathmodel.NewValidPath(fmt.Sprintf("%d.png", ebookID))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	iconPath, err = iconPath.WithPrefix(pathmodel.PrefixIcons)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if data, err := os.ReadFile(store.LocalPath(iconPath)); err == nil {
		return data, nil
	}

	src, err := store.LoadData(cover)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer src.Close()

	srcImg, _, err := image.Decode(src)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srcBounds := srcImg.Bounds()
	targetW, targetH := fitDimensions(srcBounds.Dx(), srcBounds.Dy(), iconSize, iconSize)

	dstImg := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dstImg, dstImg.Bounds(), srcImg, srcBounds, draw.Over, nil)

	encoded, err := encodePNG(dstImg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if _, err := store.StoreDataOverwrite(iconPath, encoded); err != nil {
		return nil, errors.WithStack(err)
	}
	return encoded, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	ratioW := float64(maxW) / float64(srcW)
	ratioH := float64(maxH) / float64(srcH)

	ratio := ratioW
	if ratioH < ratioW {
		ratio = ratioH
	}

	return int(float64(srcW) * ratio), int(float64(srcH) * ratio)
}
