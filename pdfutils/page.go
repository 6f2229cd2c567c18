package pdfutils

import (
	"bytes"
	"io"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
)

// ErrPageOutOfRange is returned when a page number does not exist in the document.
var ErrPageOutOfRange = errors.New("page out of range")

// PageInfo describes a page as a viewer displays it. Width and Height are in
// PDF points and already account for the page rotation.
type PageInfo struct {
	Number int     `json:"pageNumber"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rotate int64   `json:"rotate,omitempty"`
}

// Viewport returns the page size in pixels when rendered at scale.
func (p PageInfo) Viewport(scale float64) r2.Point {
	return r2.Point{X: p.Width * scale, Y: p.Height * scale}
}

func ReadPages(rs io.ReadSeeker) ([]PageInfo, error) {
	pdfReader, err := model.NewPdfReader(rs)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return nil, errors.Wrap(err, "check encryption")
	}

	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return nil, errors.Wrap(err, "decrypt pdf")
		}

		if !ok {
			return nil, errors.New("pdf is password protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, errors.Wrap(err, "count pages")
	}

	pages := make([]PageInfo, 0, numPages)

	for i := 0; i < numPages; i++ {
		page, err := pdfReader.GetPage(i + 1)
		if err != nil {
			return nil, errors.Wrapf(err, "read page %d", i+1)
		}

		info, err := GetPageInfo(page)
		if err != nil {
			return nil, errors.Wrapf(err, "read page %d", i+1)
		}

		info.Number = i + 1
		pages = append(pages, info)
	}

	return pages, nil
}

func GetPageInfo(page *model.PdfPage) (PageInfo, error) {
	mediaBox, err := page.GetMediaBox()
	if err != nil {
		return PageInfo{}, err
	}

	width := mediaBox.Width()
	height := mediaBox.Height()

	var angle int64

	if page.Rotate != nil {
		angle = normalizeRotation(*page.Rotate)
	}

	if angle == 90 || angle == 270 {
		width, height = height, width
	}

	return PageInfo{
		Width:  width,
		Height: height,
		Rotate: angle,
	}, nil
}

func normalizeRotation(angle int64) int64 {
	angle %= 360

	if angle < 0 {
		angle += 360
	}

	return angle
}

// Reader reads page geometry from in-memory documents.
type Reader struct{}

func (Reader) Pages(data []byte) ([]PageInfo, error) {
	return ReadPages(bytes.NewReader(data))
}

// CheckPage fails with ErrPageOutOfRange unless 1 <= pageNumber <= count.
func CheckPage(pageNumber, count int) error {
	if pageNumber < 1 || pageNumber > count {
		return errors.Wrapf(ErrPageOutOfRange, "page %d of %d", pageNumber, count)
	}

	return nil
}
