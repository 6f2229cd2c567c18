package session

import (
	"context"
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/signature"
	"github.com/mgmeyers/pdfsign/task"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoDocument = errors.New("no document loaded")
	ErrNotFound   = errors.New("annotation not found")
	ErrSigning    = errors.New("signing in progress")
)

type Pager interface {
	Pages(data []byte) ([]pdfutils.PageInfo, error)
}

type Renderer interface {
	Render(data []byte, pageNumber int, scale float64) (image.Image, error)
}

type Signer interface {
	ApplySignatures(ctx context.Context, file backend.File, records []signature.Record) ([]byte, error)
}

// Item is an annotation held by the session together with its ID.
type Item struct {
	ID         string
	Annotation signature.Annotation
}

// Session is one document being signed. It is created empty, loaded with a
// document, annotated on one page at a time and discarded after signing.
type Session struct {
	mu sync.Mutex

	id    string
	state State

	pager    Pager
	renderer Renderer
	signer   Signer
	logger   logrus.FieldLogger

	scale    float64
	font     string
	fontSize float64
	color    string

	name       string
	data       []byte
	pages      []pdfutils.PageInfo
	page       int
	background image.Image

	items []Item
	ids   map[string]bool

	// generation changes whenever the document is replaced or reset.
	generation int
	signing    bool

	result []byte
}

func New(pager Pager, renderer Renderer, signer Signer, options ...Option) *Session {
	s := &Session{
		id:    uuid.NewString(),
		state: NoDocument,

		pager:    pager,
		renderer: renderer,
		signer:   signer,
		logger:   logrus.StandardLogger(),

		scale:    DefaultScale,
		font:     DefaultFont,
		fontSize: DefaultFontSize,
		color:    pdfutils.DefaultColor,
	}

	for _, option := range options {
		option(s)
	}

	s.logger = s.logger.WithField("session", s.id)

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.name
}

func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.page
}

func (s *Session) Pages() []pdfutils.PageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]pdfutils.PageInfo(nil), s.pages...)
}

// PageHeight is the current page's height in canvas pixels at the session scale.
func (s *Session) PageHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pageHeight()
}

func (s *Session) pageHeight() float64 {
	if s.page < 1 || s.page > len(s.pages) {
		return 0
	}

	return s.pages[s.page-1].Viewport(s.scale).Y
}

// Background is the rendered current page, or nil when the session has no renderer.
func (s *Session) Background() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.background
}

func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Item(nil), s.items...)
}

// Result returns the signed document once the session is Signed.
func (s *Session) Result() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Signed {
		return nil, errors.Wrapf(ErrInvalidTransition, "session is %s", s.state)
	}

	return s.result, nil
}

func (s *Session) setState(to State) error {
	if err := Transition(s.state, to); err != nil {
		return err
	}

	if s.state != to {
		s.logger.WithFields(logrus.Fields{"from": s.state, "to": to}).Debug("session state changed")
	}

	s.state = to

	return nil
}

// Load reads the page geometry of data and renders its first page. Any
// previous document is discarded.
func (s *Session) Load(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) == 0 {
		return errors.Wrap(ErrNoDocument, "empty file")
	}

	s.reset()

	var pages []pdfutils.PageInfo
	var background image.Image

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		pages, err = s.pager.Pages(data)
		return err
	})

	g.Go(func() error {
		var err error
		background, err = s.render(gctx, data, 1)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithField("name", name).Error("load document")
		return err
	}

	if len(pages) == 0 {
		return errors.New("document has no pages")
	}

	s.name = name
	s.data = data
	s.pages = pages
	s.page = 1
	s.background = background

	s.logger.WithFields(logrus.Fields{
		"name":  name,
		"pages": len(pages),
	}).Info("document loaded")

	return s.setState(DocumentLoaded)
}

func (s *Session) render(ctx context.Context, data []byte, pageNumber int) (image.Image, error) {
	if s.renderer == nil {
		return nil, nil
	}

	scale := s.scale

	t := task.Go(ctx, func(ctx context.Context) (image.Image, error) {
		return s.renderer.Render(data, pageNumber, scale)
	})

	img, err := t.Wait(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "render page %d", pageNumber)
	}

	return img, nil
}

// GoToPage switches the view to another page. Annotations belong to the view
// they were placed on, so they are discarded.
func (s *Session) GoToPage(ctx context.Context, pageNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return err
	}

	if err := Transition(s.state, DocumentLoaded); err != nil {
		return err
	}

	if err := pdfutils.CheckPage(pageNumber, len(s.pages)); err != nil {
		return err
	}

	background, err := s.render(ctx, s.data, pageNumber)
	if err != nil {
		return err
	}

	if len(s.items) > 0 {
		s.logger.WithField("annotations", len(s.items)).Warn("page changed, discarding annotations")
	}

	s.page = pageNumber
	s.background = background
	s.items = nil
	s.ids = map[string]bool{}

	return s.setState(DocumentLoaded)
}

// Add places an annotation on the current page and returns its ID. The
// annotation is validated up front so a bad mark never reaches signing.
func (s *Session) Add(obj signature.Annotation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return "", err
	}

	if err := Transition(s.state, Annotating); err != nil {
		return "", err
	}

	if !obj.IsBackground() {
		if _, err := signature.ToRecord(obj, s.pageHeight(), s.page); err != nil {
			return "", err
		}

		s.checkBounds(obj)
	}

	id := pdfutils.GetAnnotationID(s.ids, s.page, obj.TopLeft.X, obj.TopLeft.Y, string(obj.Kind))
	s.items = append(s.items, Item{ID: id, Annotation: obj})

	s.logger.WithFields(logrus.Fields{
		"id":   id,
		"kind": obj.Kind,
		"page": s.page,
	}).Debug("annotation added")

	return id, s.setState(Annotating)
}

// AddText adds a typed signature at a canvas position using the session's
// font, size and colour.
func (s *Session) AddText(text string, at r2.Point) (string, error) {
	text = pdfutils.CleanText(text)

	return s.Add(signature.Annotation{
		Kind:       signature.Text,
		TopLeft:    at,
		Width:      EstimateTextWidth(text, s.fontSize),
		Height:     EstimateTextHeight(s.fontSize),
		Text:       text,
		FontFamily: s.font,
		FontSize:   s.fontSize,
		Color:      s.color,
	})
}

// AddImage adds a drawn signature at a canvas position. The image is cropped
// to its ink and placed at its natural size.
func (s *Session) AddImage(img image.Image, at r2.Point) (string, error) {
	data, cropped, err := pdfutils.EncodeSignatureImage(img)
	if err != nil {
		return "", err
	}

	size := cropped.Bounds().Size()

	return s.Add(signature.Annotation{
		Kind:    signature.Image,
		TopLeft: at,
		Width:   float64(size.X),
		Height:  float64(size.Y),
		Data:    data,
	})
}

// Move repositions an annotation on the canvas.
func (s *Session) Move(id string, to r2.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(id)
	if err != nil {
		return err
	}

	if err := Transition(s.state, Annotating); err != nil {
		return err
	}

	s.items[i].Annotation.TopLeft = to

	if !s.items[i].Annotation.IsBackground() {
		s.checkBounds(s.items[i].Annotation)
	}

	return nil
}

func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(id)
	if err != nil {
		return err
	}

	next := Annotating

	if len(s.items) == 1 {
		next = DocumentLoaded
	}

	if err := Transition(s.state, next); err != nil {
		return err
	}

	s.items = append(s.items[:i], s.items[i+1:]...)

	return s.setState(next)
}

// Records maps the current annotations to backend records.
func (s *Session) Records() ([]signature.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records()
}

func (s *Session) records() ([]signature.Record, error) {
	if err := s.requireDocument(); err != nil {
		return nil, err
	}

	objects := make([]signature.Annotation, 0, len(s.items))

	for _, item := range s.items {
		objects = append(objects, item.Annotation)
	}

	records, err := signature.ToBatch(objects, s.pageHeight(), s.page)
	if err != nil {
		return nil, err
	}

	if err := signature.CheckPages(records, len(s.pages)); err != nil {
		return nil, err
	}

	return records, nil
}

// Sign submits all annotations to the backend. The session only becomes
// Signed when the backend returns the signed document. The session stays
// readable during the backend call but rejects edits until it returns.
func (s *Session) Sign(ctx context.Context) ([]byte, error) {
	job, err := s.beginSign()
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"page": job.page, "signatures": len(job.records)})

	t := task.Go(ctx, func(ctx context.Context) ([]byte, error) {
		return s.signer.ApplySignatures(ctx, job.file, job.records)
	})

	signed, err := t.Wait(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if job.generation != s.generation {
		return nil, errors.Wrap(ErrInvalidTransition, "document replaced while signing")
	}

	s.signing = false

	if err != nil {
		log.WithError(err).Error("signing failed")
		return nil, err
	}

	s.result = signed

	log.WithField("bytes", len(signed)).Info("document signed")

	return signed, s.setState(Signed)
}

type signJob struct {
	file       backend.File
	records    []signature.Record
	page       int
	generation int
}

func (s *Session) beginSign() (signJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditable(); err != nil {
		return signJob{}, err
	}

	records, err := s.records()
	if err != nil {
		return signJob{}, err
	}

	if err := Transition(s.state, Signed); err != nil {
		return signJob{}, err
	}

	s.signing = true

	return signJob{
		file:       backend.File{Name: s.name, Content: s.data},
		records:    records,
		page:       s.page,
		generation: s.generation,
	}, nil
}

// Reset discards the document and all annotations.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
}

func (s *Session) reset() {
	s.name = ""
	s.data = nil
	s.pages = nil
	s.page = 0
	s.background = nil
	s.items = nil
	s.ids = map[string]bool{}
	s.result = nil

	s.generation++
	s.signing = false

	s.setState(NoDocument)
}

func (s *Session) requireDocument() error {
	if s.state == NoDocument {
		return ErrNoDocument
	}

	if s.state == Signed {
		return errors.Wrap(ErrInvalidTransition, "document already signed")
	}

	return nil
}

func (s *Session) requireEditable() error {
	if err := s.requireDocument(); err != nil {
		return err
	}

	if s.signing {
		return ErrSigning
	}

	return nil
}

func (s *Session) find(id string) (int, error) {
	if err := s.requireEditable(); err != nil {
		return -1, err
	}

	for i, item := range s.items {
		if item.ID == id {
			return i, nil
		}
	}

	return -1, errors.Wrap(ErrNotFound, id)
}

func (s *Session) checkBounds(obj signature.Annotation) {
	if s.page < 1 || s.page > len(s.pages) {
		return
	}

	page := pdfutils.PageRect(s.pages[s.page-1], s.scale)
	mark := pdfutils.CanvasRect(obj.TopLeft, obj.RenderedWidth(), obj.RenderedHeight(), s.pageHeight())

	if !pdfutils.IsWithinOverlapThresh(page, mark) {
		s.logger.WithFields(logrus.Fields{
			"kind": obj.Kind,
			"left": obj.TopLeft.X,
			"top":  obj.TopLeft.Y,
		}).Warn("annotation lies mostly outside the page")
	}
}
