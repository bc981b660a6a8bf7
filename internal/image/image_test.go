package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{200, 10, 30, 255})
			} else {
				img.Set(x, y, color.RGBA{5, 120, 250, 255})
			}
		}
	}
	return img
}

func TestDecodeBytesPNG(t *testing.T) {
	data, err := EncodePNG(checkerboard(6, 4))
	require.NoError(t, err)

	img, format, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 6, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestDecodeBytesUnsupported(t *testing.T) {
	_, _, err := DecodeBytes([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestIsSupportedFormat(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":  true,
		"a.JPEG": true,
		"a.png":  true,
		"a.tif":  true,
		"a.bmp":  true,
		"a.webp": true,
		"a.gif":  false,
		"a":      false,
	}
	for path, want := range tests {
		assert.Equal(t, want, IsSupportedFormat(path), path)
	}
}

func TestLoadAndListImages(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, checkerboard(3, 3)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	paths, err := ListImages(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "a.png", filepath.Base(paths[0]))

	img, err := Load(paths[0])
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = Load(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMatRoundTrip(t *testing.T) {
	src := checkerboard(5, 3)
	mat, err := ToMat(src)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 3, mat.Rows())
	assert.Equal(t, 5, mat.Cols())
	assert.Equal(t, gocv.MatTypeCV8UC3, mat.Type())

	out, err := MatToRGBA(mat)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestToMatGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 2, 2))
	g.SetGray(1, 1, color.Gray{Y: 77})
	mat, err := ToMat(g)
	require.NoError(t, err)
	defer mat.Close()

	vec := mat.GetVecbAt(1, 1)
	assert.Equal(t, uint8(77), vec[0])
	assert.Equal(t, uint8(77), vec[2])
}

func TestEncodeBase64PNG(t *testing.T) {
	s, err := EncodeBase64PNG(checkerboard(2, 2))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
}
