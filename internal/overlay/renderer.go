// Package overlay draws the backdrop, title, person boxes and face labels on
// frames. Drawing is in place and keeps no state between frames.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/identity"
)

// Defaults
const (
	DefaultTitle = "Human & Face Detection"
	DefaultAlpha = 0.5
)

var (
	backdropColor = color.RGBA{R: 50, G: 50, B: 50, A: 255}
	titleColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	personColor   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

// Renderer draws annotations. The zero value uses the defaults.
type Renderer struct {
	Title string
	Alpha float64
}

// New returns a renderer with the given title and backdrop opacity.
func New(title string, alpha float64) *Renderer {
	return &Renderer{Title: title, Alpha: alpha}
}

// Backdrop blends a dark full-frame rectangle over frame and writes the title.
func (r *Renderer) Backdrop(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}

	alpha := r.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	title := r.Title
	if title == "" {
		title = DefaultTitle
	}

	overlay := frame.Clone()
	defer overlay.Close()

	gocv.Rectangle(&overlay, image.Rect(0, 0, frame.Cols(), frame.Rows()), backdropColor, -1)
	gocv.AddWeighted(overlay, alpha, *frame, 1-alpha, 0, frame)

	gocv.PutText(frame, title, image.Pt(20, 40), gocv.FontHersheySimplex, 1, titleColor, 2)
}

// DrawDetections outlines each person box with its caption above it.
func (r *Renderer) DrawDetections(frame *gocv.Mat, boxes []detector.BoundingBox) {
	for _, box := range boxes {
		gocv.Rectangle(frame, box.Rect(), personColor, 2)
		gocv.PutText(frame, Label(box), image.Pt(box.X, box.Y-10),
			gocv.FontHersheySimplex, 0.5, personColor, 2)
	}
}

// DrawMatches outlines each face in the color of its decision.
func (r *Renderer) DrawMatches(frame *gocv.Mat, faces []identity.FaceMatch) {
	for _, f := range faces {
		rect := f.Region.Rect()
		gocv.Rectangle(frame, rect, f.Result.Color, 2)
		gocv.PutText(frame, f.Result.Label, image.Pt(rect.Min.X, rect.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, f.Result.Color, 2)
	}
}

// Label is the caption for a person box.
func Label(box detector.BoundingBox) string {
	return box.Caption()
}
