package signature

import (
	"encoding/json"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/pdfsign/pdfutils"
)

type Kind string

const (
	Image Kind = "image"
	Text  Kind = "text"
)

func (k Kind) Valid() bool {
	return k == Image || k == Text
}

// Annotation is a mark placed on the annotation canvas. Coordinates are canvas
// pixels with the origin at the top-left, at the render scale of the page view.
type Annotation struct {
	Kind    Kind
	TopLeft r2.Point

	Width  float64
	Height float64
	ScaleX float64
	ScaleY float64

	// Data holds the image data URL of an image mark.
	Data string

	Text       string
	FontFamily string
	FontSize   float64
	Color      string

	// Background marks the rasterized page placed behind the marks.
	Background bool
}

func scaled(v, scale float64) float64 {
	if scale == 0 {
		return v
	}

	return v * scale
}

// RenderedHeight is the height after the editor's scale factor is applied.
func (a Annotation) RenderedHeight() float64 {
	return scaled(a.Height, a.ScaleY)
}

func (a Annotation) RenderedWidth() float64 {
	return scaled(a.Width, a.ScaleX)
}

// IsBackground reports whether a is the page backdrop rather than a signature.
func (a Annotation) IsBackground() bool {
	return a.Kind == Image && a.Background
}

// canvasObject is the JSON form produced by the browser canvas editor.
type canvasObject struct {
	Type string `json:"type"`

	Left float64 `json:"left"`
	Top  float64 `json:"top"`

	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	ScaleX float64 `json:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty"`

	Src string `json:"src,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	Fill       fill    `json:"fill,omitempty"`

	IsBackground bool `json:"isBackground,omitempty"`
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(canvasObject{
		Type: string(a.Kind),

		Left: a.TopLeft.X,
		Top:  a.TopLeft.Y,

		Width:  a.Width,
		Height: a.Height,
		ScaleX: a.ScaleX,
		ScaleY: a.ScaleY,

		Src: a.Data,

		Text:       a.Text,
		FontFamily: a.FontFamily,
		FontSize:   a.FontSize,
		Fill:       fill(a.Color),

		IsBackground: a.Background,
	})
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var obj canvasObject

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*a = Annotation{
		Kind:    Kind(obj.Type),
		TopLeft: r2.Point{X: obj.Left, Y: obj.Top},

		Width:  obj.Width,
		Height: obj.Height,
		ScaleX: obj.ScaleX,
		ScaleY: obj.ScaleY,

		Data: obj.Src,

		Text:       obj.Text,
		FontFamily: obj.FontFamily,
		FontSize:   obj.FontSize,
		Color:      string(obj.Fill),

		Background: obj.IsBackground,
	}

	return nil
}

// fill is a CSS colour string, or an [r, g, b] triple normalized to 0-1.
type fill string

func (f *fill) UnmarshalJSON(data []byte) error {
	var s string

	if err := json.Unmarshal(data, &s); err == nil {
		*f = fill(s)
		return nil
	}

	var rgb []float64

	if err := json.Unmarshal(data, &rgb); err != nil || len(rgb) != 3 {
		return invalid("color", "want a colour string or an [r, g, b] triple")
	}

	c, err := pdfutils.ColorFromRGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		return invalid("color", err.Error())
	}

	*f = fill(c)

	return nil
}
