package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/session"
	"github.com/mgmeyers/pdfsign/signature"
	"github.com/pkg/errors"
)

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return errors.Wrap(errBadRequest, err.Error())
}

type recordsRequest struct {
	Annotations  []signature.Annotation `json:"annotations"`
	PageHeightPx float64                `json:"pageHeightPx"`
	PageNumber   int                    `json:"pageNumber"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	records, err := signature.ToBatch(req.Annotations, req.PageHeightPx, req.PageNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	_, data, err := readPDF(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	pages, err := s.pager.Pages(data)
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		http.Error(w, "rendering is not available", http.StatusNotImplemented)
		return
	}

	_, data, err := readPDF(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	pageNumber, err := intParam(r.FormValue("page"), 1)
	if err != nil {
		s.writeError(w, err)
		return
	}

	scale, err := floatParam(r.FormValue("scale"), s.scale)
	if err != nil {
		s.writeError(w, err)
		return
	}

	img, err := s.renderer.Render(data, pageNumber, scale)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")

	if err := pdfutils.WritePNG(w, img); err != nil {
		s.logger.WithError(err).Warn("write page image")
	}
}

// handleApply signs a document from canvas annotations, or from records that
// are already in PDF space when the signatures field is sent instead.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	name, data, err := readPDF(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if raw := r.FormValue("signatures"); raw != "" {
		s.applyRecords(w, r, name, data, raw)
		return
	}

	var annotations []signature.Annotation

	if err := json.Unmarshal([]byte(r.FormValue("annotations")), &annotations); err != nil {
		s.writeError(w, badRequest(errors.Wrap(err, "annotations")))
		return
	}

	pageNumber, err := intParam(r.FormValue("pageNumber"), 1)
	if err != nil {
		s.writeError(w, err)
		return
	}

	scale, err := floatParam(r.FormValue("scale"), s.scale)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess := session.New(s.pager, nil, s.signer, session.WithScale(scale), session.WithLogger(s.logger))
	defer sess.Reset()

	if err := sess.Load(r.Context(), name, data); err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	if pageNumber != 1 {
		if err := sess.GoToPage(r.Context(), pageNumber); err != nil {
			s.writeError(w, err)
			return
		}
	}

	for i, a := range annotations {
		if _, err := sess.Add(a); err != nil {
			var annotErr *signature.AnnotationError

			if errors.As(err, &annotErr) {
				annotErr.Index = i
			}

			s.writeError(w, err)
			return
		}
	}

	signed, err := sess.Sign(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writePDF(w, signed)
}

func (s *Server) applyRecords(w http.ResponseWriter, r *http.Request, name string, data []byte, raw string) {
	records, err := signature.Decode([]byte(raw))
	if err != nil {
		s.writeError(w, badRequest(errors.Wrap(err, "signatures")))
		return
	}

	if records, err = signature.CheckRecords(records); err != nil {
		s.writeError(w, err)
		return
	}

	pages, err := s.pager.Pages(data)
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	if err := signature.CheckPages(records, len(pages)); err != nil {
		s.writeError(w, err)
		return
	}

	signed, err := s.signer.ApplySignatures(r.Context(), backend.File{Name: name, Content: data}, records)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writePDF(w, signed)
}

// handleSign signs a single record given as individual form fields:
// signatureType, signatureData, x, y, pageNumber and, for text, font,
// fontSize and color.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	name, data, err := readPDF(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	record, err := signRecord(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if record, err = signature.CheckRecord(record); err != nil {
		s.writeError(w, err)
		return
	}

	pages, err := s.pager.Pages(data)
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	if err := signature.CheckPages([]signature.Record{record}, len(pages)); err != nil {
		s.writeError(w, err)
		return
	}

	signed, err := s.signer.SignPDF(r.Context(), backend.File{Name: name, Content: data}, record)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writePDF(w, signed)
}

func signRecord(r *http.Request) (signature.Record, error) {
	x, err := requiredInt(r.FormValue("x"), "x")
	if err != nil {
		return signature.Record{}, err
	}

	y, err := requiredInt(r.FormValue("y"), "y")
	if err != nil {
		return signature.Record{}, err
	}

	pageNumber, err := intParam(r.FormValue("pageNumber"), 1)
	if err != nil {
		return signature.Record{}, err
	}

	record := signature.Record{
		Type: signature.Kind(r.FormValue("signatureType")),
		Data: r.FormValue("signatureData"),

		Position: signature.Position{X: x, Y: y},

		PageNumber: pageNumber,
	}

	if record.Type == signature.Text {
		if record.FontSize, err = floatParam(r.FormValue("fontSize"), 0); err != nil {
			return signature.Record{}, err
		}

		record.Font = r.FormValue("font")
		record.Color = r.FormValue("color")
	}

	return record, nil
}

func readPDF(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", nil, badRequest(err)
	}

	f, header, err := r.FormFile("pdfFile")
	if err != nil {
		return "", nil, badRequest(errors.Wrap(err, "pdfFile"))
	}

	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, badRequest(err)
	}

	return header.Filename, data, nil
}

func intParam(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest(err)
	}

	return v, nil
}

func requiredInt(s string, name string) (int, error) {
	if s == "" {
		return 0, badRequest(errors.Errorf("missing %s", name))
	}

	return intParam(s, 0)
}

func floatParam(s string, fallback float64) (float64, error) {
	if s == "" {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, badRequest(errors.Errorf("invalid number %q", s))
	}

	return v, nil
}

type errorResponse struct {
	Error string `json:"error"`

	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	UpstreamBody   string `json:"upstreamBody,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	var upstream *backend.UpstreamError

	switch {
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
		resp.UpstreamStatus = upstream.StatusCode
		resp.UpstreamBody = upstream.Body

	case errors.Is(err, backend.ErrInvalidPayload):
		status = http.StatusBadGateway

	case errors.Is(err, errBadRequest),
		errors.Is(err, signature.ErrInvalidAnnotation),
		errors.Is(err, signature.ErrEmptyBatch),
		errors.Is(err, signature.ErrPageOutOfRange),
		errors.Is(err, session.ErrNoDocument):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(v)
}

func writePDF(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="signed_document.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	w.Write(data)
}
