package pdfutils

import (
	"github.com/golang/geo/r2"
)

// PageRect is the rendered page area in pixels at scale, origin bottom-left.
func PageRect(p PageInfo, scale float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{}, p.Viewport(scale))
}

// CanvasRect converts a box given in canvas space (origin top-left, y down) of a
// view viewHeight pixels tall into a rect with the origin at the bottom-left.
func CanvasRect(topLeft r2.Point, width, height, viewHeight float64) r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: topLeft.X, Y: viewHeight - topLeft.Y},
		r2.Point{X: topLeft.X + width, Y: viewHeight - (topLeft.Y + height)},
	)
}

// IsWithinOverlapThresh reports whether at least half of mark lies inside area.
func IsWithinOverlapThresh(area r2.Rect, mark r2.Rect) bool {
	if !area.IsValid() || !mark.IsValid() {
		return false
	}

	markSize := getArea(mark)

	if markSize == 0 {
		return area.ContainsPoint(mark.Center())
	}

	if !area.Intersects(mark) {
		return false
	}

	intersect := getArea(area.Intersection(mark))

	return intersect/markSize >= 0.5
}

func getArea(r r2.Rect) float64 {
	s := r.Size()
	return s.X * s.Y
}
