package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// maxPixelsPerPoint caps the resolution of a fitted image
const maxPixelsPerPoint = 4.0

// fitImage decodes data with the decoder for format and stretches it to the
// aspect ratio of rect. It returns the PNG to embed and its pixel width; a
// stamp scaled to rect.Width then covers rect to within half a point.
func fitImage(data []byte, format string, rect Rect) ([]byte, int, error) {
	var (
		src image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		src, err = jpeg.Decode(bytes.NewReader(data))
	case FormatPNG:
		src, err = png.Decode(bytes.NewReader(data))
	default:
		err = fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, 0, err
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, 0, errors.New("image has no pixels")
	}

	// Keep the source resolution along its denser axis
	k := math.Max(float64(b.Dx())/rect.Width, float64(b.Dy())/rect.Height)
	k = math.Min(math.Max(k, 1), maxPixelsPerPoint)
	w := int(math.Max(1, math.Round(rect.Width*k)))
	h := int(math.Max(1, math.Round(rect.Height*k)))

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), w, nil
}
