package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/session"
	"github.com/mgmeyers/pdfsign/signature"
	"github.com/sirupsen/logrus"
)

// maxUploadSize bounds multipart requests carrying a PDF.
const maxUploadSize = 64 << 20

// Signer is the signing backend. ApplySignatures takes a batch of records,
// SignPDF a single record sent as individual form fields.
type Signer interface {
	session.Signer

	SignPDF(ctx context.Context, file backend.File, record signature.Record) ([]byte, error)
}

type Server struct {
	handler http.Handler

	pager    session.Pager
	renderer session.Renderer
	signer   Signer

	scale   float64
	origins []string

	logger logrus.FieldLogger
}

func New(pager session.Pager, renderer session.Renderer, signer Signer, options ...Option) *Server {
	s := &Server{
		pager:    pager,
		renderer: renderer,
		signer:   signer,

		scale:   session.DefaultScale,
		origins: []string{"*"},

		logger: logrus.StandardLogger(),
	}

	for _, option := range options {
		option(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/records", s.handleRecords)
		r.Post("/pages", s.handlePages)
		r.Post("/render", s.handleRender)
		r.Post("/apply-signatures", s.handleApply)
		r.Post("/sign-pdf", s.handleSign)
	})

	s.handler = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		s.logger.WithField("address", addr).Info("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start),
			"request":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

type Option func(*Server)

func WithScale(scale float64) Option {
	return func(s *Server) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}
