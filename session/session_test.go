package session_test

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/session"
	"github.com/mgmeyers/pdfsign/signature"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/stretchr/testify/require"
)

var document = []byte("%PDF-1.4 test document")

type fakePager struct {
	pages []pdfutils.PageInfo
	err   error
}

func (p fakePager) Pages(data []byte) ([]pdfutils.PageInfo, error) {
	return p.pages, p.err
}

type fakeRenderer struct {
	rendered []int
}

func (r *fakeRenderer) Render(data []byte, pageNumber int, scale float64) (image.Image, error) {
	r.rendered = append(r.rendered, pageNumber)
	return image.NewRGBA(image.Rect(0, 0, int(595*scale), int(842*scale))), nil
}

type fakeSigner struct {
	calls   int
	file    backend.File
	records []signature.Record
	err     error
}

func (s *fakeSigner) ApplySignatures(ctx context.Context, file backend.File, records []signature.Record) ([]byte, error) {
	s.calls++
	s.file = file
	s.records = records

	if s.err != nil {
		return nil, s.err
	}

	return []byte("%PDF-1.4 signed"), nil
}

// gatedSigner holds ApplySignatures open until release is closed.
type gatedSigner struct {
	started chan struct{}
	release chan struct{}
}

func newGatedSigner() *gatedSigner {
	return &gatedSigner{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedSigner) ApplySignatures(ctx context.Context, file backend.File, records []signature.Record) ([]byte, error) {
	close(s.started)
	<-s.release

	return []byte("%PDF-1.4 signed"), nil
}

func twoPages() fakePager {
	return fakePager{pages: []pdfutils.PageInfo{
		{Number: 1, Width: 595, Height: 842},
		{Number: 2, Width: 842, Height: 595, Rotate: 90},
	}}
}

func newSession(t *testing.T, signer session.Signer, options ...session.Option) (*session.Session, *fakeRenderer) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	renderer := &fakeRenderer{}

	options = append([]session.Option{session.WithLogger(logger)}, options...)
	s := session.New(twoPages(), renderer, signer, options...)

	require.Equal(t, session.NoDocument, s.State())
	require.NoError(t, s.Load(context.Background(), "contract.pdf", document))

	return s, renderer
}

func TestLoad(t *testing.T) {
	s, renderer := newSession(t, &fakeSigner{})

	require.Equal(t, session.DocumentLoaded, s.State())
	require.Equal(t, "contract.pdf", s.Name())
	require.Equal(t, 1, s.Page())
	require.Len(t, s.Pages(), 2)
	require.InDelta(t, 1263, s.PageHeight(), 1e-9)
	require.Equal(t, []int{1}, renderer.rendered)
	require.Equal(t, 1263, s.Background().Bounds().Dy())
	require.NotEmpty(t, s.ID())
}

func TestLoadFailure(t *testing.T) {
	failure := errors.New("broken xref")

	s := session.New(fakePager{err: failure}, nil, &fakeSigner{})

	err := s.Load(context.Background(), "broken.pdf", document)
	require.ErrorIs(t, err, failure)
	require.Equal(t, session.NoDocument, s.State())

	err = s.Load(context.Background(), "empty.pdf", nil)
	require.ErrorIs(t, err, session.ErrNoDocument)
}

func TestRequiresDocument(t *testing.T) {
	s := session.New(twoPages(), nil, &fakeSigner{})

	_, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.ErrorIs(t, err, session.ErrNoDocument)

	_, err = s.Sign(context.Background())
	require.ErrorIs(t, err, session.ErrNoDocument)

	require.ErrorIs(t, s.GoToPage(context.Background(), 1), session.ErrNoDocument)
}

func TestAddTextRecords(t *testing.T) {
	s, _ := newSession(t, &fakeSigner{})

	id, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)
	require.Equal(t, "text-p1x100y100", id)
	require.Equal(t, session.Annotating, s.State())

	records, err := s.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)

	// 1263 - (100 + 36*1.13)
	require.Equal(t, signature.Record{
		Type:       signature.Text,
		Data:       "Jane Doe",
		Position:   signature.Position{X: 100, Y: 1122},
		PageNumber: 1,
		Font:       "Brush Script MT",
		FontSize:   36,
		Color:      "#000000",
	}, records[0])
}

func TestTextStyle(t *testing.T) {
	s, _ := newSession(t, &fakeSigner{}, session.WithTextStyle("Courier, monospace", 20, "#F00"), session.WithScale(1))

	_, err := s.AddText("J. Doe", r2.Point{X: 10, Y: 10})
	require.NoError(t, err)

	records, err := s.Records()
	require.NoError(t, err)
	require.Equal(t, "Courier", records[0].Font)
	require.Equal(t, 20.0, records[0].FontSize)
	require.Equal(t, "#ff0000", records[0].Color)
	require.Equal(t, 809, records[0].Y)
}

func TestAddImage(t *testing.T) {
	s, _ := newSession(t, &fakeSigner{})

	pad := image.NewRGBA(image.Rect(0, 0, 300, 150))
	for x := 10; x < 110; x++ {
		for y := 20; y < 70; y++ {
			pad.Set(x, y, color.Black)
		}
	}

	_, err := s.AddImage(pad, r2.Point{X: 50, Y: 1000})
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	require.Equal(t, 100.0, items[0].Annotation.Width)
	require.Equal(t, 50.0, items[0].Annotation.Height)

	records, err := s.Records()
	require.NoError(t, err)
	require.Equal(t, signature.Image, records[0].Type)
	require.Equal(t, signature.Position{X: 50, Y: 213}, records[0].Position)
}

func TestAddRejectsInvalid(t *testing.T) {
	s, _ := newSession(t, &fakeSigner{})

	_, err := s.AddText("   ", r2.Point{X: 100, Y: 100})
	require.ErrorIs(t, err, signature.ErrInvalidAnnotation)
	require.Empty(t, s.Items())
	require.Equal(t, session.DocumentLoaded, s.State())
}

func TestOrderMoveRemove(t *testing.T) {
	s, _ := newSession(t, &fakeSigner{})

	a, err := s.AddText("A", r2.Point{X: 10, Y: 10})
	require.NoError(t, err)

	b, err := s.AddText("B", r2.Point{X: 20, Y: 20})
	require.NoError(t, err)

	c, err := s.AddText("C", r2.Point{X: 30, Y: 30})
	require.NoError(t, err)

	require.NoError(t, s.Move(a, r2.Point{X: 400, Y: 500}))

	records, err := s.Records()
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, []string{records[0].Data, records[1].Data, records[2].Data})
	require.Equal(t, 400, records[0].X)

	require.NoError(t, s.Remove(b))
	require.ErrorIs(t, s.Remove(b), session.ErrNotFound)

	records, err = s.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, s.Remove(a))
	require.NoError(t, s.Remove(c))
	require.Equal(t, session.DocumentLoaded, s.State())

	_, err = s.Records()
	require.ErrorIs(t, err, signature.ErrEmptyBatch)
}

func TestSign(t *testing.T) {
	signer := &fakeSigner{}
	s, _ := newSession(t, signer)

	_, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	out, err := s.Sign(context.Background())
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 signed", string(out))

	require.Equal(t, session.Signed, s.State())
	require.Equal(t, 1, signer.calls)
	require.Equal(t, backend.File{Name: "contract.pdf", Content: document}, signer.file)
	require.Len(t, signer.records, 1)

	result, err := s.Result()
	require.NoError(t, err)
	require.Equal(t, out, result)

	_, err = s.AddText("again", r2.Point{X: 1, Y: 1})
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	s.Reset()
	require.Equal(t, session.NoDocument, s.State())
}

func TestSignFailureKeepsAnnotations(t *testing.T) {
	signer := &fakeSigner{err: &backend.UpstreamError{StatusCode: 500, Body: "boom"}}
	s, _ := newSession(t, signer)

	_, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	_, err = s.Sign(context.Background())
	require.ErrorIs(t, err, backend.ErrUpstreamFailure)

	require.Equal(t, session.Annotating, s.State())
	require.Len(t, s.Items(), 1)
	require.Equal(t, 1, signer.calls)

	_, err = s.Result()
	require.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestSignKeepsSessionReadable(t *testing.T) {
	signer := newGatedSigner()
	s, _ := newSession(t, signer)

	id, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		_, err := s.Sign(context.Background())
		done <- err
	}()

	<-signer.started

	require.Equal(t, session.Annotating, s.State())
	require.Len(t, s.Items(), 1)

	require.ErrorIs(t, s.Remove(id), session.ErrSigning)
	require.ErrorIs(t, s.Move(id, r2.Point{X: 1, Y: 1}), session.ErrSigning)

	_, err = s.AddText("again", r2.Point{X: 1, Y: 1})
	require.ErrorIs(t, err, session.ErrSigning)

	_, err = s.Sign(context.Background())
	require.ErrorIs(t, err, session.ErrSigning)

	close(signer.release)

	require.NoError(t, <-done)
	require.Equal(t, session.Signed, s.State())
}

func TestSignAfterReset(t *testing.T) {
	signer := newGatedSigner()
	s, _ := newSession(t, signer)

	_, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		_, err := s.Sign(context.Background())
		done <- err
	}()

	<-signer.started
	s.Reset()
	close(signer.release)

	require.ErrorIs(t, <-done, session.ErrInvalidTransition)
	require.Equal(t, session.NoDocument, s.State())

	_, err = s.Result()
	require.Error(t, err)
}

func TestSignEmpty(t *testing.T) {
	signer := &fakeSigner{}
	s, _ := newSession(t, signer)

	_, err := s.Sign(context.Background())
	require.ErrorIs(t, err, signature.ErrEmptyBatch)

	_, err = s.Add(signature.Annotation{Kind: signature.Image, Background: true})
	require.NoError(t, err)

	_, err = s.Sign(context.Background())
	require.ErrorIs(t, err, signature.ErrEmptyBatch)
	require.Zero(t, signer.calls)
}

func TestGoToPage(t *testing.T) {
	s, renderer := newSession(t, &fakeSigner{})

	_, err := s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	require.NoError(t, s.GoToPage(context.Background(), 2))
	require.Equal(t, 2, s.Page())
	require.Empty(t, s.Items())
	require.Equal(t, session.DocumentLoaded, s.State())
	require.InDelta(t, 892.5, s.PageHeight(), 1e-9)
	require.Equal(t, []int{1, 2}, renderer.rendered)

	require.ErrorIs(t, s.GoToPage(context.Background(), 3), pdfutils.ErrPageOutOfRange)

	_, err = s.AddText("Jane Doe", r2.Point{X: 100, Y: 100})
	require.NoError(t, err)

	records, err := s.Records()
	require.NoError(t, err)
	require.Equal(t, 2, records[0].PageNumber)
}

func TestOffPageWarning(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := session.New(twoPages(), nil, &fakeSigner{}, session.WithLogger(logger))
	require.NoError(t, s.Load(context.Background(), "a.pdf", document))

	hook.Reset()

	_, err := s.AddText("Jane Doe", r2.Point{X: 5000, Y: 100})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "annotation lies mostly outside the page", entry.Message)
}

func TestTransition(t *testing.T) {
	require.NoError(t, session.Transition(session.NoDocument, session.DocumentLoaded))
	require.NoError(t, session.Transition(session.DocumentLoaded, session.Annotating))
	require.NoError(t, session.Transition(session.Annotating, session.Signed))
	require.NoError(t, session.Transition(session.Signed, session.NoDocument))

	require.ErrorIs(t, session.Transition(session.NoDocument, session.Annotating), session.ErrInvalidTransition)
	require.ErrorIs(t, session.Transition(session.DocumentLoaded, session.Signed), session.ErrInvalidTransition)
	require.ErrorIs(t, session.Transition(session.Signed, session.Annotating), session.ErrInvalidTransition)
}
