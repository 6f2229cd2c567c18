package backend

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout bounds every request, including reading the response.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
