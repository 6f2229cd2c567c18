package session

import (
	"github.com/pkg/errors"
)

type State int

const (
	NoDocument State = iota
	DocumentLoaded
	Annotating
	Signed
)

func (s State) String() string {
	switch s {
	case NoDocument:
		return "no-document"
	case DocumentLoaded:
		return "document-loaded"
	case Annotating:
		return "annotating"
	case Signed:
		return "signed"
	default:
		return "unknown"
	}
}

var ErrInvalidTransition = errors.New("invalid state transition")

// Any state may go back to NoDocument.
var transitions = map[State][]State{
	NoDocument:     {DocumentLoaded},
	DocumentLoaded: {DocumentLoaded, Annotating},
	Annotating:     {Annotating, DocumentLoaded, Signed},
	Signed:         {},
}

// Transition checks whether the session may move from one state to another.
func Transition(from, to State) error {
	if to == NoDocument {
		return nil
	}

	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
}
