package pdfutils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// RemoveNul strips control and replacement characters, which the backend's
// standard fonts cannot encode.
func RemoveNul(str string) string {
	return strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, str)
}

var nlAndSpace = regexp.MustCompile(`[\n\s]+`)

func CondenseSpaces(str string) string {
	return nlAndSpace.ReplaceAllString(str, " ")
}

// CleanText prepares typed signature text for placement on a single line.
func CleanText(str string) string {
	return strings.TrimSpace(RemoveNul(CondenseSpaces(str)))
}

// PrimaryFontName returns the first family of a CSS font-family list, e.g.
// "Brush Script MT" for "Brush Script MT, cursive". fallback is returned when
// nothing usable is left.
func PrimaryFontName(family string, fallback string) string {
	name := strings.Split(family, ",")[0]
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	name = strings.TrimSpace(name)

	if name == "" {
		return fallback
	}

	return name
}

// GetAnnotationID builds an ID such as "text-p1x100y100", adding a numeric
// suffix until it is unique within ids.
func GetAnnotationID(ids map[string]bool, pageNumber int, x float64, y float64, annotType string) string {
	xInt := int(x)
	yInt := int(y)
	id := fmt.Sprintf("%s-p%dx%dy%d", annotType, pageNumber, xInt, yInt)
	_, ok := ids[id]

	for i := 1; ok; i++ {
		id = fmt.Sprintf("%s-p%dx%dy%d-%d", annotType, pageNumber, xInt, yInt, i)
		_, ok = ids[id]
	}

	ids[id] = true

	return id
}
