package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/inference"
)

// ONNX runs a YOLO export through ONNX Runtime. The model takes one
// [1, 3, size, size] RGB input scaled to [0, 1] and emits one [1, N, 5+C]
// tensor of normalized rows, the same layout as the Darknet output layers.
type ONNX struct {
	session   *inference.Session
	inputSize int
}

// NewONNX creates the detector. inference.Initialize must have been called.
func NewONNX(modelPath string, inputSize int, opts inference.Options) (*ONNX, error) {
	inputs, outputs, err := inference.ModelIO(modelPath)
	if err != nil {
		return nil, err
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("unexpected model signature: %d inputs, %d outputs", len(inputs), len(outputs))
	}

	session, err := inference.NewSession(modelPath, inputs, outputs[:1], opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}

	return &ONNX{
		session:   session,
		inputSize: inputSize,
	}, nil
}

// Detect runs inference on one frame
func (o *ONNX) Detect(frame gocv.Mat) ([]RawDetection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	// HWC BGR uint8 -> NCHW RGB float32 / 255
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(o.inputSize, o.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	inputTensor, err := inference.CreateTensor(
		[]int64{1, 3, int64(o.inputSize), int64(o.inputSize)},
		bytesToFloat32(blob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	shape := out.GetShape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("scalar detector output")
	}
	cols := int(shape[len(shape)-1])

	dets, _ := DecodeYOLO(out.GetData(), cols)
	NormalizeGeometry(dets, o.inputSize)
	return dets, nil
}

// Close releases detector resources
func (o *ONNX) Close() error {
	return o.session.Destroy()
}
