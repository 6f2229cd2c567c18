package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/signature"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type recordsCmd struct {
	Annotations string `arg:"" optional:"" type:"path" help:"Annotations JSON file. Reads stdin when omitted"`

	Input      string  `short:"i" type:"existingfile" help:"PDF to take the page height from"`
	Page       int     `short:"p" default:"1" help:"Page the annotations are placed on"`
	PageHeight float64 `help:"Rendered page height in pixels. Overrides --input"`
}

func (c *recordsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	annotations, err := readAnnotations(c.Annotations)
	if err != nil {
		return err
	}

	pageHeight := c.PageHeight
	pageCount := 0

	if pageHeight <= 0 {
		if c.Input == "" {
			return errors.New("either --page-height or --input is required")
		}

		pages, err := readPages(c.Input)
		if err != nil {
			return err
		}

		if err := pdfutils.CheckPage(c.Page, len(pages)); err != nil {
			return err
		}

		pageHeight = pages[c.Page-1].Viewport(cfg.Render.Scale).Y
		pageCount = len(pages)
	}

	records, err := signature.ToBatch(annotations, pageHeight, c.Page)
	if err != nil {
		return err
	}

	if pageCount > 0 {
		if err := signature.CheckPages(records, pageCount); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"page":       c.Page,
		"pageHeight": pageHeight,
		"signatures": len(records),
	}).Debug("mapped annotations")

	return logOutput(os.Stdout, records)
}

func readAnnotations(path string) ([]signature.Annotation, error) {
	var r io.Reader = os.Stdin

	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		defer f.Close()

		r = f
	}

	var annotations []signature.Annotation

	if err := json.NewDecoder(r).Decode(&annotations); err != nil {
		return nil, errors.Wrap(err, "decode annotations")
	}

	return annotations, nil
}

func readPages(path string) ([]pdfutils.PageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return pdfutils.ReadPages(f)
}

type pagesCmd struct {
	Input string `arg:"" name:"input" type:"existingfile" help:"Path to input PDF"`
}

func (c *pagesCmd) Run(g *Globals) error {
	pages, err := readPages(c.Input)
	if err != nil {
		return err
	}

	return logOutput(os.Stdout, pages)
}

type renderCmd struct {
	Input  string `arg:"" name:"input" type:"existingfile" help:"Path to input PDF"`
	Page   int    `short:"p" default:"1" help:"Page to render"`
	Output string `short:"o" type:"path" default:"page.png" help:"Output PNG path"`
}

func (c *renderCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}

	img, err := pdfutils.Rasterizer{}.Render(data, c.Page, cfg.Render.Scale)
	if err != nil {
		return err
	}

	fd, err := os.Create(c.Output)
	if err != nil {
		return err
	}

	defer fd.Close()

	if err := pdfutils.WritePNG(fd, img); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"page":   c.Page,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"output": c.Output,
	}).Info("page rendered")

	return nil
}

type uploadCmd struct {
	Input string `arg:"" name:"input" type:"existingfile" help:"Path to input PDF"`
}

func (c *uploadCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	client, err := newBackend(cfg)
	if err != nil {
		return err
	}

	file, err := readFile(c.Input)
	if err != nil {
		return err
	}

	result, err := client.UploadPDF(context.Background(), file)
	if err != nil {
		return err
	}

	return logOutput(os.Stdout, result)
}

func readFile(path string) (backend.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.File{}, err
	}

	f, err := os.Stat(path)
	if err != nil {
		return backend.File{}, err
	}

	return backend.File{Name: f.Name(), Content: data}, nil
}
