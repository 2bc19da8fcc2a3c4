// Package geometry holds the bounding-box helpers shared by the tracker,
// the coordinator and the image adapters. Everything here is pure.
package geometry

import (
	"image"
	"math"
)

// Box is an axis-aligned bounding box in pixel coordinates, corner format.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Point is an integer pixel position.
type Point struct {
	X int
	Y int
}

// FromSlice builds a Box from an [x1, y1, x2, y2] slice. ok is false when the
// slice does not hold exactly four values.
func FromSlice(v []float64) (Box, bool) {
	if len(v) != 4 {
		return Box{}, false
	}
	return Box{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, true
}

// Slice returns the box as [x1, y1, x2, y2].
func (b Box) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Width of the box; negative for inverted boxes.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height of the box; negative for inverted boxes.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Empty reports whether the box has no positive area.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Centroid returns the integer centre of the box, truncated toward zero.
func Centroid(b Box) Point {
	return Point{
		X: int((b.X1 + b.X2) / 2),
		Y: int((b.Y1 + b.Y2) / 2),
	}
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Hypot(dx, dy)
}

// Area returns the box area, zero for degenerate boxes.
func Area(b Box) float64 {
	if b.Empty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Clamp restricts the box to a width x height frame. The result may be
// empty when the box lies entirely outside the frame.
func Clamp(b Box, width, height int) Box {
	w, h := float64(width), float64(height)
	return Box{
		X1: clamp(b.X1, 0, w),
		Y1: clamp(b.Y1, 0, h),
		X2: clamp(b.X2, 0, w),
		Y2: clamp(b.Y2, 0, h),
	}
}

// IoU calculates intersection over union between two boxes.
func IoU(a, b Box) float64 {
	x1 := max(a.X1, b.X1)
	y1 := max(a.Y1, b.Y1)
	x2 := min(a.X2, b.X2)
	y2 := min(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	inter := (x2 - x1) * (y2 - y1)
	union := Area(a) + Area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Crop cuts the box out of img after clamping it to the image bounds. When
// the clamped box is empty a 1x1 placeholder is returned so callers always
// get something they can encode.
func Crop(img image.Image, b Box) image.Image {
	bounds := img.Bounds()
	r := image.Rect(
		bounds.Min.X+int(clamp(b.X1, 0, float64(bounds.Dx()))),
		bounds.Min.Y+int(clamp(b.Y1, 0, float64(bounds.Dy()))),
		bounds.Min.X+int(clamp(b.X2, 0, float64(bounds.Dx()))),
		bounds.Min.Y+int(clamp(b.Y2, 0, float64(bounds.Dy()))),
	)
	if r.Empty() {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
