package detector

import "math"

// yoloHeader is the number of leading columns before the class scores:
// center x, center y, width, height, objectness.
const yoloHeader = 5

// DecodeYOLO splits a row-major YOLO output ([cx, cy, w, h, obj, scores...]
// per row) into raw detections. Rows too short to carry a class score are
// skipped and counted.
func DecodeYOLO(data []float32, cols int) (dets []RawDetection, skipped int) {
	if cols <= 0 {
		return nil, 0
	}
	rows := len(data) / cols
	if cols <= yoloHeader {
		return nil, rows
	}

	dets = make([]RawDetection, 0, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		scores := make([]float32, cols-yoloHeader)
		copy(scores, row[yoloHeader:])
		dets = append(dets, RawDetection{
			CenterX:    row[0],
			CenterY:    row[1],
			Width:      row[2],
			Height:     row[3],
			Objectness: row[4],
			Scores:     scores,
		})
	}
	if tail := len(data) - rows*cols; tail > 0 {
		skipped++
	}
	return dets, skipped
}

// NormalizeGeometry rescales pixel-space rows to fractions of the model input.
// ONNX exports emit box geometry in input pixels, Darknet emits fractions; a
// row with any geometry above 1 marks the whole output as pixel-space.
func NormalizeGeometry(dets []RawDetection, inputSize int) {
	if inputSize <= 0 {
		return
	}
	pixels := false
	for _, d := range dets {
		if d.CenterX > 1 || d.CenterY > 1 || d.Width > 1 || d.Height > 1 {
			pixels = true
			break
		}
	}
	if !pixels {
		return
	}
	scale := float32(inputSize)
	for i := range dets {
		dets[i].CenterX /= scale
		dets[i].CenterY /= scale
		dets[i].Width /= scale
		dets[i].Height /= scale
	}
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
