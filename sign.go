package main

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type signCmd struct {
	Input string `arg:"" name:"input" type:"existingfile" help:"Path to input PDF"`

	Text  string `short:"t" help:"Typed signature text"`
	Image string `type:"existingfile" help:"Drawn signature image (PNG or JPEG)"`

	Page int     `short:"p" default:"1" help:"Page to sign"`
	Left float64 `default:"100" help:"Left edge of the signature on the rendered page, in pixels"`
	Top  float64 `default:"100" help:"Top edge of the signature on the rendered page, in pixels"`

	Font     string  `help:"Font family of typed signatures"`
	FontSize float64 `help:"Font size of typed signatures"`
	Color    string  `help:"Colour of typed signatures"`

	Output string `short:"o" type:"path" default:"signed_document.pdf" help:"Output PDF path"`
}

func (c *signCmd) Run(g *Globals) error {
	if (c.Text == "") == (c.Image == "") {
		return errors.New("exactly one of --text or --image is required")
	}

	cfg, err := g.load()
	if err != nil {
		return err
	}

	client, err := newBackend(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}

	font, size, color := cfg.Signature.Font, cfg.Signature.FontSize, cfg.Signature.Color
	if c.Font != "" {
		font = c.Font
	}

	if c.FontSize > 0 {
		size = c.FontSize
	}

	if c.Color != "" {
		color = c.Color
	}

	s := session.New(pdfutils.Reader{}, nil, client,
		session.WithScale(cfg.Render.Scale),
		session.WithTextStyle(font, size, color),
		session.WithLogger(logrus.StandardLogger()),
	)

	ctx := context.Background()

	if err := s.Load(ctx, filepath.Base(c.Input), data); err != nil {
		return err
	}

	if err := s.GoToPage(ctx, c.Page); err != nil {
		return err
	}

	at := r2.Point{X: c.Left, Y: c.Top}

	if c.Text != "" {
		_, err = s.AddText(c.Text, at)
	} else {
		var img image.Image

		if img, err = readImage(c.Image); err != nil {
			return err
		}

		_, err = s.AddImage(img, at)
	}

	if err != nil {
		return err
	}

	signed, err := s.Sign(ctx)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.Output, signed, 0o644); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"page":   c.Page,
		"bytes":  len(signed),
		"output": c.Output,
	}).Info("document signed")

	return nil
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	return img, nil
}
