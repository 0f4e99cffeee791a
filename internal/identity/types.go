// Package identity decides whether faces in a frame belong to the one enrolled
// reference identity.
package identity

import (
	"image"
	"image/color"
)

// Match labels
const (
	LabelMatch   = "Match"
	LabelUnknown = "Unknown"
)

// DefaultTolerance is the largest embedding distance still counted as a match.
const DefaultTolerance = 0.6

var (
	// ColorMatch is used for faces matching the reference (green).
	ColorMatch = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	// ColorUnknown is used for every other face (red).
	ColorUnknown = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// FaceRegion is a face rectangle in frame pixels.
type FaceRegion struct {
	Top, Right, Bottom, Left int
}

// RegionFromRect converts an image.Rectangle.
func RegionFromRect(r image.Rectangle) FaceRegion {
	return FaceRegion{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect returns the region as an image.Rectangle.
func (f FaceRegion) Rect() image.Rectangle {
	return image.Rect(f.Left, f.Top, f.Right, f.Bottom)
}

// Embedding is a face identity vector.
type Embedding []float32

// MatchResult is the decision for one face.
type MatchResult struct {
	Matched  bool
	Distance float64
	Label    string
	Color    color.RGBA
}

// FaceMatch pairs a located face with its decision.
type FaceMatch struct {
	Region FaceRegion
	Result MatchResult
}
