package backend

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInvalidPayload  = errors.New("backend did not return a pdf")
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrUpstreamFailure, e.StatusCode)
	}

	return fmt.Sprintf("%s: status %d: %s", ErrUpstreamFailure, e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	body := strings.TrimSpace(string(data))

	if body == "" {
		body = http.StatusText(resp.StatusCode)
	}

	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}
