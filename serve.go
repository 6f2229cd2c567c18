package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/mgmeyers/pdfsign/server"
	"github.com/sirupsen/logrus"
)

type serveCmd struct {
	Address string `short:"a" env:"PDFSIGN_ADDRESS" help:"Listen address"`
}

func (c *serveCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	if c.Address != "" {
		cfg.Address = c.Address
	}

	client, err := newBackend(cfg)
	if err != nil {
		return err
	}

	s := server.New(pdfutils.Reader{}, pdfutils.Rasterizer{}, client,
		server.WithScale(cfg.Render.Scale),
		server.WithAllowedOrigins(cfg.CORS.AllowedOrigins...),
		server.WithLogger(logrus.StandardLogger()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithField("backend", cfg.Backend.URL).Debug("using backend")

	return s.ListenAndServe(ctx, cfg.Address)
}
