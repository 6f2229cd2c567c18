package config

import (
	"bytes"
	"os"
	"time"

	"github.com/mgmeyers/pdfsign/backend"
	"github.com/mgmeyers/pdfsign/session"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Address string `yaml:"address"`

	Backend   Backend   `yaml:"backend"`
	Render    Render    `yaml:"render"`
	Signature Signature `yaml:"signature"`

	CORS CORS `yaml:"cors"`
}

type Backend struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Render struct {
	Scale float64 `yaml:"scale"`
}

type Signature struct {
	Font     string  `yaml:"font"`
	FontSize float64 `yaml:"fontSize"`
	Color    string  `yaml:"color"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

func Default() *Config {
	return &Config{
		Address: ":8080",

		Backend: Backend{
			URL:     backend.DefaultURL,
			Timeout: 60 * time.Second,
		},

		Render: Render{
			Scale: session.DefaultScale,
		},

		Signature: Signature{
			Font:     session.DefaultFont,
			FontSize: session.DefaultFontSize,
			Color:    "#000000",
		},

		CORS: CORS{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Parse reads a YAML file on top of the defaults. ${VAR} references are
// expanded from the environment.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	c := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	if c.Render.Scale <= 0 {
		return errors.Errorf("render.scale must be positive, got %v", c.Render.Scale)
	}

	if c.Signature.FontSize <= 0 {
		return errors.Errorf("signature.fontSize must be positive, got %v", c.Signature.FontSize)
	}

	if c.Backend.Timeout < 0 {
		return errors.Errorf("backend.timeout must not be negative, got %v", c.Backend.Timeout)
	}

	return nil
}
