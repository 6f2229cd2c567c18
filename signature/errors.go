package signature

import (
	"fmt"

	"github.com/mgmeyers/pdfsign/pdfutils"
	"github.com/pkg/errors"
)

var (
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrEmptyBatch        = errors.New("no signatures to apply")
	ErrPageOutOfRange    = pdfutils.ErrPageOutOfRange
)

// AnnotationError reports which input was rejected. Index is the position of
// the object in a batch, or -1 for a single transform.
type AnnotationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *AnnotationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidAnnotation, e.Field, e.Reason)
	}

	return fmt.Sprintf("%s %d: %s: %s", ErrInvalidAnnotation, e.Index, e.Field, e.Reason)
}

func (e *AnnotationError) Is(target error) bool {
	return target == ErrInvalidAnnotation
}

func invalid(field, reason string) error {
	return &AnnotationError{Index: -1, Field: field, Reason: reason}
}
