package pdfutils

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/pkg/errors"
	"github.com/vincent-petithory/dataurl"
)

var ErrEmptyImage = errors.New("signature image has no ink")

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func CropImage(img image.Image, crop image.Rectangle) (image.Image, error) {
	simg, ok := img.(subImager)
	if !ok {
		return nil, errors.New("image does not support cropping")
	}

	return simg.SubImage(crop), nil
}

// InkBounds returns the smallest rectangle holding every pixel that is neither
// transparent nor near-white. It is empty for a blank pad.
func InkBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	ink := image.Rectangle{}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isInk(img, x, y) {
				continue
			}

			px := image.Rect(x, y, x+1, y+1)

			if ink.Empty() {
				ink = px
			} else {
				ink = ink.Union(px)
			}
		}
	}

	return ink
}

func isInk(img image.Image, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()

	if a < 0x1000 {
		return false
	}

	const white = 0xf000

	return r < white || g < white || b < white
}

// EncodeSignatureImage crops a drawn signature to its ink and returns it as a
// PNG data URL together with the cropped image.
func EncodeSignatureImage(img image.Image) (string, image.Image, error) {
	ink := InkBounds(img)

	if ink.Empty() {
		return "", nil, ErrEmptyImage
	}

	cropped, err := CropImage(img, ink)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer

	if err := png.Encode(&buf, cropped); err != nil {
		return "", nil, errors.Wrap(err, "encode signature")
	}

	return dataurl.New(buf.Bytes(), "image/png").String(), cropped, nil
}

// DecodeSignatureImage decodes an image data URL.
func DecodeSignatureImage(s string) (image.Image, error) {
	du, err := dataurl.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode data url")
	}

	if du.Type != "image" {
		return nil, errors.Errorf("unexpected media type %s", du.ContentType())
	}

	img, _, err := image.Decode(bytes.NewReader(du.Data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	return img, nil
}

func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
