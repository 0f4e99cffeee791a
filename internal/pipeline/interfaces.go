package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/identity"
)

// Source supplies frames. Read fills frame or returns an error; io.EOF marks
// the end of a finite source.
type Source interface {
	Connect() error
	StartStream() error
	Read(frame *gocv.Mat) error
	StopStream() error
	Close() error
}

// Sink presents annotated frames. PollKey must not block and returns -1 when
// no key is pressed.
type Sink interface {
	Show(frame *gocv.Mat) error
	PollKey() int
	Close() error
}

// Detector runs the object detection model on a frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]detector.RawDetection, error)
	Close() error
}

// Renderer draws annotations in place.
type Renderer interface {
	Backdrop(frame *gocv.Mat)
	DrawDetections(frame *gocv.Mat, boxes []detector.BoundingBox)
	DrawMatches(frame *gocv.Mat, faces []identity.FaceMatch)
}
