package session

import (
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultScale is the render scale of the page view.
	DefaultScale = 1.5

	DefaultFont     = "Brush Script MT, cursive"
	DefaultFontSize = 36.0
)

// Line height and average glyph width relative to the font size, as a canvas
// text object lays out a single line.
const (
	textLineHeight = 1.13
	textGlyphWidth = 0.5
)

func EstimateTextHeight(fontSize float64) float64 {
	return fontSize * textLineHeight
}

func EstimateTextWidth(text string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(text)) * fontSize * textGlyphWidth
}

type Option func(*Session)

func WithScale(scale float64) Option {
	return func(s *Session) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithTextStyle sets the font family, size and colour of typed signatures.
// Zero values keep the defaults.
func WithTextStyle(font string, size float64, color string) Option {
	return func(s *Session) {
		if font != "" {
			s.font = font
		}

		if size > 0 {
			s.fontSize = size
		}

		if color != "" {
			s.color = color
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}
