package detector

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/logger"
)

// Darknet runs a YOLO Darknet model (cfg + weights) through OpenCV DNN.
type Darknet struct {
	net          gocv.Net
	outputLayers []string
	inputSize    int
}

// NewDarknet loads the network and resolves its output layers once.
func NewDarknet(cfgPath, weightsPath string, inputSize int) (*Darknet, error) {
	net := gocv.ReadNet(weightsPath, cfgPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load darknet model %s (%s)", weightsPath, cfgPath)
	}

	names := net.GetLayerNames()
	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		// layer ids are 1-based
		if id-1 < 0 || id-1 >= len(names) {
			net.Close()
			return nil, fmt.Errorf("output layer id %d out of range (%d layers)", id, len(names))
		}
		outputs = append(outputs, names[id-1])
	}
	if len(outputs) == 0 {
		net.Close()
		return nil, fmt.Errorf("darknet model %s has no output layers", weightsPath)
	}

	logger.Log().Info("darknet detector loaded",
		zap.String("weights", weightsPath),
		zap.Strings("outputs", outputs),
		zap.Int("input_size", inputSize))

	return &Darknet{
		net:          net,
		outputLayers: outputs,
		inputSize:    inputSize,
	}, nil
}

// Detect runs one forward pass and returns every output row of every output layer.
func (d *Darknet) Detect(frame gocv.Mat) ([]RawDetection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputLayers)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	var dets []RawDetection
	for _, out := range outs {
		data, err := out.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("reading output layer: %w", err)
		}
		rows, skipped := DecodeYOLO(data, out.Cols())
		if skipped > 0 {
			logger.Log().Debug("skipped malformed detector rows", zap.Int("rows", skipped))
		}
		dets = append(dets, rows...)
	}

	return dets, nil
}

// Close releases the network
func (d *Darknet) Close() error {
	return d.net.Close()
}
