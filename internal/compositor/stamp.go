package compositor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

const (
	qrSize   = 56.0 // points
	qrMargin = 18.0
	qrPixels = 256

	captionText = "Scan to verify"
	captionSize = 6
)

// imageStyle places an image stamp by its offset from the bottom-left corner
const imageStyle = "pos:bl, rot:0, op:1"

func textStyle(points int) string {
	return fmt.Sprintf("fontname:%s, points:%d, fillcolor:%s, pos:bl, rot:0, op:1, scale:1 abs", textFont, points, accent)
}

// stampText escapes the placeholders pdfcpu expands in stamp text (%p, %P,
// %t, %v). A percent sign followed by one of them gets a space in between.
func stampText(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		b.WriteString("%%")
		if i+1 < len(s) && strings.IndexByte("pPtv%", s[i+1]) >= 0 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func verificationQR(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrPixels)
	if err != nil {
		return nil, apperr.Render(err, "failed to encode verification QR")
	}
	return png, nil
}

// stamp draws the verification QR in the bottom-right corner of the last
// page with a caption under it
func stamp(doc *model.Context, pageNo int, page models.PageSize, verifyURL string) error {
	qr, err := verificationQR(verifyURL)
	if err != nil {
		return err
	}

	x := page.Width - qrMargin - qrSize
	code, err := api.ImageWatermarkForReader(bytes.NewReader(qr), imageStyle, true, false, types.POINTS)
	if err != nil {
		return apperr.Render(err, "failed to embed verification QR")
	}
	code.Scale, code.ScaleAbs = qrSize/qrPixels, true
	code.Dx, code.Dy = x, qrMargin

	caption, err := api.TextWatermark(captionText, textStyle(captionSize), true, false, types.POINTS)
	if err != nil {
		return apperr.Render(err, "failed to lay out verification caption")
	}
	caption.Dx, caption.Dy = x, qrMargin-captionSize-2

	for _, wm := range []*model.Watermark{code, caption} {
		if err := api.WatermarkContext(doc, types.IntSet{pageNo: true}, wm); err != nil {
			return apperr.Render(err, "failed to stamp verification QR")
		}
	}
	return nil
}
