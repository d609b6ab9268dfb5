package compositor

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

func init() {
	// pdfcpu would otherwise create a config.yml under the user config dir
	api.DisableConfigDir()
}

// Info describes a parsed PDF
type Info struct {
	PageCount int
	Pages     []models.PageSize
	Encrypted bool
}

// pdfConfig reads leniently and writes a classic xref table without object
// streams, the layout canonicalize works on.
func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Inspect parses data and reports its page geometry.
// Encrypted files are read with an empty user password.
func Inspect(data []byte) (*Info, error) {
	_, info, err := open(data)
	return info, err
}

// open reads data into a pdfcpu context. Page sizes are the visible region
// of each page (crop box, else media box) with rotation applied, the same
// frame pdfcpu anchors stamps in.
func open(data []byte) (*model.Context, *Info, error) {
	if len(data) == 0 {
		return nil, nil, apperr.Render(nil, "PDF is empty")
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, nil, apperr.Render(err, "failed to parse PDF")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, nil, apperr.Render(err, "failed to count PDF pages")
	}

	boxes, err := ctx.PageBoundaries(nil)
	if err != nil {
		return nil, nil, apperr.Render(err, "failed to read PDF page sizes")
	}

	info := &Info{
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	for i, pb := range boxes {
		box := pb.CropBox()
		if box == nil {
			return nil, nil, apperr.Render(nil, "PDF page %d has no media box", i+1)
		}
		d := box.Dimensions()
		if pb.Rot%180 != 0 {
			d.Width, d.Height = d.Height, d.Width
		}
		info.Pages = append(info.Pages, models.PageSize{Width: d.Width, Height: d.Height})
	}
	if info.PageCount == 0 {
		return nil, nil, apperr.Render(nil, "PDF has no pages")
	}
	if len(info.Pages) != info.PageCount {
		return nil, nil, apperr.Render(nil, "PDF page tree lists %d pages but %d have sizes", info.PageCount, len(info.Pages))
	}
	return ctx, info, nil
}
