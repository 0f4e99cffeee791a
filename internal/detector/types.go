package detector

import (
	"fmt"
	"image"
	"math"
)

// RawDetection is one candidate row emitted by the object detector.
// Geometry is expressed as fractions of the frame dimensions.
type RawDetection struct {
	CenterX, CenterY float32
	Width, Height    float32
	Objectness       float32
	Scores           []float32 // per-class scores
}

// BestClass returns the index and score of the highest class score.
// The first maximum wins ties. ok is false when there are no scores.
func (r RawDetection) BestClass() (classID int, score float32, ok bool) {
	if len(r.Scores) == 0 {
		return -1, 0, false
	}
	for i, s := range r.Scores {
		if i == 0 || s > score {
			classID, score = i, s
		}
	}
	return classID, score, true
}

func (r RawDetection) valid() bool {
	for _, v := range []float32{r.CenterX, r.CenterY, r.Width, r.Height} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// BoundingBox is a detection in frame pixel coordinates.
type BoundingBox struct {
	X, Y          int // top-left
	Width, Height int
	Confidence    float64 // percent, 0-100
	ClassID       int
	Label         string
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns box area, zero for degenerate boxes.
func (b BoundingBox) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Caption is the text drawn above the box, e.g. "Person 95.0%".
func (b BoundingBox) Caption() string {
	return fmt.Sprintf("%s %.1f%%", titleCase(b.Label), b.Confidence)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
