package compositor

import (
	"bytes"
	"context"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

const (
	// FallbackText is drawn when an annotation has neither image nor name
	FallbackText = "Signed by user"

	textFont = "Helvetica"
	textSize = 12
	// accent is the colour of rendered text marks
	accent = "#1a801a"
)

// Config tunes a Compositor
type Config struct {
	// Concurrency bounds parallel image downloads per call (default 4)
	Concurrency int
	// Now stamps the output's info dates (default time.Now)
	Now func() time.Time
}

// Compositor renders signature annotations onto a PDF.
// Each call works on its own in-memory document, so one Compositor can
// serve concurrent requests.
type Compositor struct {
	fetcher     Fetcher
	concurrency int
	now         func() time.Time
}

// New creates a Compositor that loads images through fetcher
func New(fetcher Fetcher, cfg Config) *Compositor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Compositor{fetcher: fetcher, concurrency: cfg.Concurrency, now: cfg.Now}
}

// Compose draws every annotation onto original and returns the new PDF.
// Any failure aborts the whole call; no partial output is returned.
// Equal input and clock give byte-identical output.
func (c *Compositor) Compose(ctx context.Context, original []byte, sigs []models.Signature) ([]byte, error) {
	return c.compose(ctx, original, sigs, "")
}

// ComposeStamped is Compose plus a QR code linking to verifyURL on the last page
func (c *Compositor) ComposeStamped(ctx context.Context, original []byte, sigs []models.Signature, verifyURL string) ([]byte, error) {
	return c.compose(ctx, original, sigs, verifyURL)
}

func (c *Compositor) compose(ctx context.Context, original []byte, sigs []models.Signature, verifyURL string) ([]byte, error) {
	doc, info, err := open(original)
	if err != nil {
		return nil, err
	}

	// Reject bad pages and formats before any network work
	formats := make([]string, len(sigs))
	for i := range sigs {
		if sigs[i].PageNumber < 1 || sigs[i].PageNumber > info.PageCount {
			return nil, apperr.Render(nil, "signature %d targets page %d but the document has %d pages",
				i+1, sigs[i].PageNumber, info.PageCount)
		}
		if sigs[i].HasImage() {
			if formats[i], err = ImageFormat(*sigs[i].SignatureURL); err != nil {
				return nil, err
			}
		}
	}

	images, err := fetchImages(ctx, c.fetcher, c.concurrency, sigs)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]int, info.PageCount)
	for i := range sigs {
		byPage[sigs[i].PageNumber] = append(byPage[sigs[i].PageNumber], i)
	}

	// Pages in ascending order, each in received order, so object numbers
	// never depend on map iteration.
	for pageNo := 1; pageNo <= info.PageCount; pageNo++ {
		page := info.Pages[pageNo-1]
		for _, i := range byPage[pageNo] {
			wm, err := mark(i, sigs[i], page, formats[i], images[i])
			if err != nil {
				return nil, err
			}
			if err := api.WatermarkContext(doc, types.IntSet{pageNo: true}, wm); err != nil {
				return nil, apperr.Render(err, "failed to draw signature %d", i+1)
			}
		}
	}

	if verifyURL != "" {
		if err := stamp(doc, info.PageCount, info.Pages[info.PageCount-1], verifyURL); err != nil {
			return nil, err
		}
	}

	return c.write(doc, info.Encrypted)
}

// write serializes doc. Encrypted input comes out decrypted.
func (c *Compositor) write(doc *model.Context, encrypted bool) ([]byte, error) {
	if encrypted {
		doc.Cmd = model.DECRYPT
	}

	var buf bytes.Buffer
	if err := api.WriteContext(doc, &buf); err != nil {
		return nil, apperr.Render(err, "failed to write signed PDF")
	}
	out, err := canonicalize(buf.Bytes(), doc, c.now())
	if err != nil {
		return nil, apperr.Render(err, "failed to write signed PDF")
	}
	return out, nil
}

// Label is the text drawn for an annotation without an image
func Label(sig models.Signature) string {
	if sig.Name != nil && *sig.Name != "" {
		return *sig.Name
	}
	return FallbackText
}

// mark builds the stamp for annotation i. Both kinds are anchored at the
// page's bottom-left corner and offset to the placement.
func mark(i int, sig models.Signature, page models.PageSize, format string, img []byte) (*model.Watermark, error) {
	rect := Placement(sig, page)

	if img == nil {
		wm, err := api.TextWatermark(stampText(Label(sig)), textStyle(textSize), true, false, types.POINTS)
		if err != nil {
			return nil, apperr.Render(err, "failed to lay out text for signature %d", i+1)
		}
		wm.Dx, wm.Dy = rect.X, rect.Y
		return wm, nil
	}

	fitted, width, err := fitImage(img, format, rect)
	if err != nil {
		return nil, apperr.Render(err, "failed to decode %s image for signature %d", format, i+1)
	}
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(fitted), imageStyle, true, false, types.POINTS)
	if err != nil {
		return nil, apperr.Render(err, "failed to embed image for signature %d", i+1)
	}
	wm.Scale, wm.ScaleAbs = rect.Width/float64(width), true
	wm.Dx, wm.Dy = rect.X, rect.Y
	return wm, nil
}
