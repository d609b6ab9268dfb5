package compositor

import (
	"net/url"
	"path"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

// Rect is an absolute box in points with a bottom-left origin
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Placement converts an annotation's normalized geometry to points on a page.
// Zero width or height falls back to the default fractions.
func Placement(sig models.Signature, page models.PageSize) Rect {
	w := sig.Width
	if w == 0 {
		w = models.DefaultWidth
	}
	h := sig.Height
	if h == 0 {
		h = models.DefaultHeight
	}
	return Rect{
		X:      sig.X * page.Width,
		Y:      sig.Y * page.Height,
		Width:  w * page.Width,
		Height: h * page.Height,
	}
}

// Signature image decoders
const (
	FormatJPEG = "JPG"
	FormatPNG  = "PNG"
)

// ImageFormat picks the decoder from the URL's file extension.
// Only jpg, jpeg and png are accepted; anything else is a render error.
func ImageFormat(rawURL string) (string, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	switch ext {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "":
		return "", apperr.Render(nil, "signature image %s has no file extension", rawURL)
	}
	return "", apperr.Render(nil, "unsupported signature image format %q", ext)
}
