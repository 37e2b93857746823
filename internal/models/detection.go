package models

import "image"

// DetectionResult is one object reported by a detector. Box holds the
// normalized corners in [y1, x1, y2, x2] order.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Pixels maps the normalized box onto an image of the given bounds.
// ok is false when the box does not carry four coordinates.
func (r DetectionResult) Pixels(bounds image.Rectangle) (box Box, ok bool) {
	if len(r.Box) != 4 {
		return Box{}, false
	}

	w := float32(bounds.Dx())
	h := float32(bounds.Dy())

	return Box{
		Y1: bounds.Min.Y + int(r.Box[0]*h),
		X1: bounds.Min.X + int(r.Box[1]*w),
		Y2: bounds.Min.Y + int(r.Box[2]*h),
		X2: bounds.Min.X + int(r.Box[3]*w),
	}, true
}

// NormalizedBox is the inverse of Pixels.
func NormalizedBox(rect image.Rectangle, bounds image.Rectangle) []float32 {
	w := float32(bounds.Dx())
	h := float32(bounds.Dy())
	if w == 0 || h == 0 {
		return []float32{0, 0, 0, 0}
	}

	return []float32{
		float32(rect.Min.Y-bounds.Min.Y) / h,
		float32(rect.Min.X-bounds.Min.X) / w,
		float32(rect.Max.Y-bounds.Min.Y) / h,
		float32(rect.Max.X-bounds.Min.X) / w,
	}
}
