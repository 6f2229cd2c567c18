package pdfutils

import (
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

const DefaultColor = "#000000"

var ErrInvalidColor = errors.New("invalid color")

// NormalizeColor accepts #rgb, #rrggbb and CSS rgb(r, g, b) notation and returns
// the colour as lower-case #rrggbb. An empty string yields DefaultColor.
func NormalizeColor(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if s == "" {
		return DefaultColor, nil
	}

	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		return parseRGBFunc(s)
	}

	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) || !isHex(s[1:]) {
		return "", errors.Wrapf(ErrInvalidColor, "%q", s)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidColor, "%q", s)
	}

	return c.Hex(), nil
}

// ColorFromRGB converts a 0-1 normalized triple to #rrggbb.
func ColorFromRGB(r, g, b float64) (string, error) {
	c := colorful.Color{R: r, G: g, B: b}

	if !c.IsValid() {
		return "", errors.Wrapf(ErrInvalidColor, "rgb(%v, %v, %v)", r, g, b)
	}

	return c.Hex(), nil
}

func parseRGBFunc(s string) (string, error) {
	parts := strings.Split(s[len("rgb("):len(s)-1], ",")

	if len(parts) != 3 {
		return "", errors.Wrapf(ErrInvalidColor, "%q", s)
	}

	clr := [3]float64{}

	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > 255 {
			return "", errors.Wrapf(ErrInvalidColor, "%q", s)
		}

		clr[i] = float64(v) / 255
	}

	return ColorFromRGB(clr[0], clr[1], clr[2])
}

// isHex reports whether s is made of hex digits only. colorful.Hex stops at
// the first bad digit without failing.
func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}

	return true
}
