package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/config"
	"github.com/sirupsen/logrus"
)

type Globals struct {
	Config    string `short:"c" type:"path" env:"PDFSIGN_CONFIG" help:"Path to a YAML config file"`
	LogLevel  string `default:"info" enum:"debug,info,warn,error" env:"PDFSIGN_LOG_LEVEL" help:"Log level"`
	LogFormat string `default:"text" enum:"text,json" env:"PDFSIGN_LOG_FORMAT" help:"Log format. Supports text and json"`

	Backend string        `short:"u" env:"PDFSIGN_BACKEND_URL" help:"Base URL of the signing backend API"`
	Timeout time.Duration `env:"PDFSIGN_TIMEOUT" help:"Timeout for backend requests"`
	Scale   float64       `short:"s" help:"Render scale the annotations were placed at"`
}

var cli struct {
	Globals

	Records recordsCmd `cmd:"" help:"Convert canvas annotations to signature records"`
	Pages   pagesCmd   `cmd:"" help:"List page sizes of a PDF"`
	Render  renderCmd  `cmd:"" help:"Render a page to PNG"`
	Upload  uploadCmd  `cmd:"" help:"Upload a PDF to the backend"`
	Sign    signCmd    `cmd:"" help:"Place a signature and download the signed PDF"`
	Serve   serveCmd   `cmd:"" help:"Serve the signing API"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("pdfsign"),
		kong.Description("Place signatures on PDF pages and have the backend apply them."),
		kong.UsageOnError(),
	)

	endIfErr(setupLogging(&cli.Globals))
	endIfErr(ctx.Run(&cli.Globals))
}

func endIfErr(e error) {
	if e != nil {
		logrus.Fatalln(e)
	}
}

func setupLogging(g *Globals) error {
	level, err := logrus.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(level)

	if g.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	return nil
}

// load reads the config file, if any, and applies flags on top of it.
func (g *Globals) load() (*config.Config, error) {
	cfg := config.Default()

	if g.Config != "" {
		var err error

		if cfg, err = config.Parse(g.Config); err != nil {
			return nil, err
		}
	}

	if g.Backend != "" {
		cfg.Backend.URL = g.Backend
	}

	if g.Timeout > 0 {
		cfg.Backend.Timeout = g.Timeout
	}

	if g.Scale > 0 {
		cfg.Render.Scale = g.Scale
	}

	return cfg, cfg.Validate()
}

func newBackend(cfg *config.Config) (*backend.Client, error) {
	return backend.New(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logrus.StandardLogger()),
	)
}

func logOutput(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
