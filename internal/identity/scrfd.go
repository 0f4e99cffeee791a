package identity

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/inference"
)

// SCRFD defaults
const (
	DefaultSCRFDSize      = 640
	DefaultSCRFDThreshold = 0.5
	scrfdNMSThreshold     = 0.4
	scrfdAnchors          = 2 // anchors per feature map position
)

var scrfdStrides = []int{8, 16, 32}

// SCRFD locates faces with an InsightFace SCRFD ONNX export. It only locates;
// pair it with an Embedder such as FaceEngine.
type SCRFD struct {
	session   *inference.Session
	inputSize int
	threshold float32
}

// NewSCRFD creates the locator. inference.Initialize must have been called.
func NewSCRFD(modelPath string, inputSize int, threshold float32, opts inference.Options) (*SCRFD, error) {
	if inputSize <= 0 {
		inputSize = DefaultSCRFDSize
	}
	if threshold <= 0 {
		threshold = DefaultSCRFDThreshold
	}

	inputs, outputs, err := inference.ModelIO(modelPath)
	if err != nil {
		return nil, err
	}
	// score, bbox and optionally kps per stride
	if len(inputs) != 1 || (len(outputs) != 2*len(scrfdStrides) && len(outputs) != 3*len(scrfdStrides)) {
		return nil, fmt.Errorf("unexpected SCRFD signature: %d inputs, %d outputs", len(inputs), len(outputs))
	}

	session, err := inference.NewSession(modelPath, inputs, outputs[:2*len(scrfdStrides)], opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:   session,
		inputSize: inputSize,
		threshold: threshold,
	}, nil
}

// LocateFaces finds faces in frame.
func (s *SCRFD) LocateFaces(frame gocv.Mat) ([]FaceRegion, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob, scale := s.preprocess(frame)
	defer blob.Close()

	inputTensor, err := inference.CreateTensor(
		[]int64{1, 3, int64(s.inputSize), int64(s.inputSize)},
		blobFloats(blob),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 2*len(scrfdStrides))
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	data := make([][]float32, len(outputs))
	for i, o := range outputs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("unexpected output type %T", o)
		}
		data[i] = t.GetData()
	}

	boxes := decodeSCRFD(data[:len(scrfdStrides)], data[len(scrfdStrides):], s.inputSize, s.threshold, scale, frame.Cols(), frame.Rows())

	keep := detector.NMS(boxes, scrfdNMSThreshold)
	regions := make([]FaceRegion, 0, len(keep))
	for _, i := range keep {
		regions = append(regions, RegionFromRect(boxes[i].Rect()))
	}
	return regions, nil
}

// preprocess letterboxes frame into the top-left of a square input and
// normalizes to (x - 127.5) / 128 in RGB order.
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	scale := float32(s.inputSize) / float32(max(img.Rows(), img.Cols()))
	newWidth := int(float32(img.Cols()) * scale)
	newHeight := int(float32(img.Rows()) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	return blob, scale
}

// decodeSCRFD turns per-stride scores and edge distances into boxes in frame
// pixels. Scores are probabilities; boxes are clamped to the frame.
func decodeSCRFD(scores, bboxes [][]float32, inputSize int, threshold, scale float32, width, height int) []detector.BoundingBox {
	var boxes []detector.BoundingBox

	for level, stride := range scrfdStrides {
		if level >= len(scores) || level >= len(bboxes) {
			break
		}
		fm := inputSize / stride
		scoreData, bboxData := scores[level], bboxes[level]

		anchor := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < scrfdAnchors; a, anchor = a+1, anchor+1 {
					if anchor >= len(scoreData) || anchor*4+3 >= len(bboxData) {
						continue
					}
					score := scoreData[anchor]
					if score <= threshold {
						continue
					}

					cx := float32(x * stride)
					cy := float32(y * stride)
					st := float32(stride)
					d := bboxData[anchor*4 : anchor*4+4]

					x1 := clampf((cx-d[0]*st)/scale, 0, float32(width))
					y1 := clampf((cy-d[1]*st)/scale, 0, float32(height))
					x2 := clampf((cx+d[2]*st)/scale, 0, float32(width))
					y2 := clampf((cy+d[3]*st)/scale, 0, float32(height))
					if x2 <= x1 || y2 <= y1 {
						continue
					}

					boxes = append(boxes, detector.BoundingBox{
						X:          int(x1),
						Y:          int(y1),
						Width:      int(x2) - int(x1),
						Height:     int(y2) - int(y1),
						Confidence: float64(score) * 100,
						Label:      "face",
					})
				}
			}
		}
	}
	return boxes
}

// Close releases the session
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func blobFloats(blob gocv.Mat) []float32 {
	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out
}
