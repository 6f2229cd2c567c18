package pdfutils

import (
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"
)

const pointsPerInch = 72.0

// Rasterizer renders pages with MuPDF. A scale of 1 renders one pixel per PDF point.
type Rasterizer struct{}

func (Rasterizer) Render(data []byte, pageNumber int, scale float64) (image.Image, error) {
	if scale <= 0 {
		return nil, errors.Errorf("invalid render scale %v", scale)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}

	defer doc.Close()

	if err := CheckPage(pageNumber, doc.NumPage()); err != nil {
		return nil, err
	}

	img, err := doc.ImageDPI(pageNumber-1, pointsPerInch*scale)
	if err != nil {
		return nil, errors.Wrapf(err, "render page %d", pageNumber)
	}

	return img, nil
}
