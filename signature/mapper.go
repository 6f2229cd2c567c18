package signature

import (
	"encoding/base64"
	"math"
	"net/http"
	"strings"

	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/pkg/errors"
	"github.com/vincent-petithory/dataurl"
)

// DefaultFont is used when a text mark names no usable font family.
const DefaultFont = "Helvetica"

// ToRecord converts one canvas mark into a record in PDF space. pageHeightPx is
// the rendered page height at the same scale the mark was placed at.
//
// The vertical axis is flipped and the record is anchored at the mark's bottom
// edge. Coordinates are rounded half away from zero.
func ToRecord(obj Annotation, pageHeightPx float64, pageNumber int) (Record, error) {
	if err := checkPage(pageHeightPx, pageNumber); err != nil {
		return Record{}, err
	}

	if err := checkGeometry(obj); err != nil {
		return Record{}, err
	}

	x := obj.TopLeft.X
	y := pageHeightPx - (obj.TopLeft.Y + obj.RenderedHeight())

	if !inRange(x) || !inRange(y) {
		return Record{}, invalid("topLeft", "out of range")
	}

	record := Record{
		Type: obj.Kind,

		Position: Position{
			X: round(x),
			Y: round(y),
		},

		PageNumber: pageNumber,
	}

	switch obj.Kind {
	case Image:
		data, err := imageData(obj.Data)
		if err != nil {
			return Record{}, err
		}

		record.Data = data

	case Text:
		if strings.TrimSpace(obj.Text) == "" {
			return Record{}, invalid("text", "empty")
		}

		record.Data = obj.Text
		record.Font = obj.FontFamily
		record.FontSize = obj.FontSize
		record.Color = obj.Color

		if err := normalizeText(&record); err != nil {
			return Record{}, err
		}
	}

	return record, nil
}

// CheckRecord validates a record that is already in PDF space and returns it
// with its payload, font and colour normalized the way ToRecord produces them.
func CheckRecord(r Record) (Record, error) {
	if !r.Type.Valid() {
		return Record{}, invalid("type", "unsupported kind "+string(r.Type))
	}

	if r.PageNumber < 1 {
		return Record{}, invalid("pageNumber", "must be positive")
	}

	switch r.Type {
	case Image:
		data, err := imageData(r.Data)
		if err != nil {
			return Record{}, err
		}

		r.Data = data
		r.Font = ""
		r.FontSize = 0
		r.Color = ""

	case Text:
		if strings.TrimSpace(r.Data) == "" {
			return Record{}, invalid("data", "empty")
		}

		if err := normalizeText(&r); err != nil {
			return Record{}, err
		}
	}

	return r, nil
}

// CheckRecords runs CheckRecord over a batch, reporting the index of the first
// bad record. An empty batch fails with ErrEmptyBatch.
func CheckRecords(records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	checked := make([]Record, 0, len(records))

	for i, r := range records {
		r, err := CheckRecord(r)
		if err != nil {
			var annotErr *AnnotationError

			if errors.As(err, &annotErr) {
				annotErr.Index = i
			}

			return nil, err
		}

		checked = append(checked, r)
	}

	return checked, nil
}

func normalizeText(r *Record) error {
	if !isFinite(r.FontSize) || r.FontSize <= 0 {
		return invalid("fontSize", "must be positive")
	}

	color, err := pdfutils.NormalizeColor(r.Color)
	if err != nil {
		return invalid("color", err.Error())
	}

	r.Font = pdfutils.PrimaryFontName(r.Font, DefaultFont)
	r.Color = color

	return nil
}

// ToBatch maps every mark except background images, keeping insertion order.
// It stops at the first invalid mark and fails with ErrEmptyBatch when nothing
// is left to sign.
func ToBatch(objects []Annotation, pageHeightPx float64, pageNumber int) ([]Record, error) {
	if err := checkPage(pageHeightPx, pageNumber); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(objects))

	for i, obj := range objects {
		if obj.IsBackground() {
			continue
		}

		record, err := ToRecord(obj, pageHeightPx, pageNumber)
		if err != nil {
			var annotErr *AnnotationError

			if errors.As(err, &annotErr) {
				annotErr.Index = i
			}

			return nil, err
		}

		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	return records, nil
}

// CheckPages fails with ErrPageOutOfRange if a record targets a page the
// document does not have.
func CheckPages(records []Record, pageCount int) error {
	for _, r := range records {
		if err := pdfutils.CheckPage(r.PageNumber, pageCount); err != nil {
			return err
		}
	}

	return nil
}

func checkPage(pageHeightPx float64, pageNumber int) error {
	if !isFinite(pageHeightPx) || pageHeightPx <= 0 {
		return invalid("pageHeightPx", "must be positive")
	}

	if pageNumber < 1 {
		return invalid("pageNumber", "must be positive")
	}

	return nil
}

func checkGeometry(obj Annotation) error {
	if !obj.Kind.Valid() {
		return invalid("type", "unsupported kind "+string(obj.Kind))
	}

	if !isFinite(obj.TopLeft.X) || !isFinite(obj.TopLeft.Y) {
		return invalid("topLeft", "not finite")
	}

	if !isFinite(obj.Height) || obj.Height < 0 {
		return invalid("height", "must be zero or positive")
	}

	if !isFinite(obj.ScaleY) || obj.ScaleY < 0 {
		return invalid("scaleY", "must be zero or positive")
	}

	return nil
}

// imageData accepts an image data URL, or bare base64 image bytes which are
// wrapped into a data URL.
func imageData(s string) (string, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return "", invalid("data", "empty")
	}

	if !strings.HasPrefix(s, "data:") {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", invalid("data", "not base64")
		}

		contentType := http.DetectContentType(raw)

		if !strings.HasPrefix(contentType, "image/") {
			return "", invalid("data", "not an image")
		}

		s = dataurl.New(raw, contentType).String()
	}

	if _, err := pdfutils.DecodeSignatureImage(s); err != nil {
		return "", invalid("data", err.Error())
	}

	return s, nil
}

// maxCoordinate bounds positions so they survive rounding to int on any
// platform. Real pages are many orders of magnitude smaller.
const maxCoordinate = math.MaxInt32

func inRange(v float64) bool {
	return math.Abs(v) <= maxCoordinate
}

func round(v float64) int {
	return int(math.Round(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
