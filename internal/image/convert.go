package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"gocv.io/x/gocv"
)

// ToMat converts an image to a 3-channel BGR Mat. The caller must Close it.
func ToMat(src image.Image) (gocv.Mat, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	buf := make([]byte, w*h*3)
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[(y+bounds.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			off := (bounds.Min.X - rgba.Rect.Min.X) * 4
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				p := off + x*4
				buf[i+0] = row[p+2]
				buf[i+1] = row[p+1]
				buf[i+2] = row[p+0]
			}
		}
	} else {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// 16-bit to 8-bit, BGR order for OpenCV
				i := (y*w + x) * 3
				buf[i+0] = uint8(b >> 8)
				buf[i+1] = uint8(g >> 8)
				buf[i+2] = uint8(r >> 8)
			}
		}
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create mat: %w", err)
	}
	defer mat.Close()
	return mat.Clone(), nil
}

// MatToRGBA converts an 8-bit BGR or grayscale Mat to an RGBA image.
func MatToRGBA(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	w, h := mat.Cols(), mat.Rows()
	channels := mat.Channels()
	if mat.Type() != gocv.MatTypeCV8UC3 && mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("unsupported mat type %v", mat.Type())
	}

	data := mat.ToBytes()
	if len(data) < w*h*channels {
		return nil, fmt.Errorf("mat data too short: %d bytes", len(data))
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * channels
			o := out.PixOffset(x, y)
			if channels == 1 {
				out.Pix[o+0] = data[i]
				out.Pix[o+1] = data[i]
				out.Pix[o+2] = data[i]
			} else {
				out.Pix[o+0] = data[i+2]
				out.Pix[o+1] = data[i+1]
				out.Pix[o+2] = data[i+0]
			}
			out.Pix[o+3] = 255
		}
	}
	return out, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG encodes img as standard base64 PNG.
func EncodeBase64PNG(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
