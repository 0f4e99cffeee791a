package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrfdOutputs returns zeroed per-stride outputs for a square input.
func scrfdOutputs(inputSize int) (scores, bboxes [][]float32) {
	for _, stride := range scrfdStrides {
		n := (inputSize / stride) * (inputSize / stride) * scrfdAnchors
		scores = append(scores, make([]float32, n))
		bboxes = append(bboxes, make([]float32, n*4))
	}
	return scores, bboxes
}

func TestDecodeSCRFD(t *testing.T) {
	scores, bboxes := scrfdOutputs(32)

	// stride 8, position (x=1, y=1), first anchor: center (8, 8)
	anchor := (1*4 + 1) * scrfdAnchors
	scores[0][anchor] = 0.9
	copy(bboxes[0][anchor*4:], []float32{0.5, 0.5, 0.5, 0.5})

	// below threshold
	scores[1][0] = 0.3
	copy(bboxes[1][0:], []float32{1, 1, 1, 1})

	boxes := decodeSCRFD(scores, bboxes, 32, 0.5, 1, 32, 32)

	require.Len(t, boxes, 1)
	assert.Equal(t, FaceRegion{Top: 4, Right: 12, Bottom: 12, Left: 4}, RegionFromRect(boxes[0].Rect()))
	assert.InDelta(t, 90.0, boxes[0].Confidence, 1e-4)
}

func TestDecodeSCRFD_ScalesAndClamps(t *testing.T) {
	scores, bboxes := scrfdOutputs(32)

	// stride 32, only position, center (0, 0); extends past the top-left
	scores[2][0] = 0.8
	copy(bboxes[2][0:], []float32{1, 1, 0.25, 0.5})

	// letterboxed at half size: frame coordinates are doubled
	boxes := decodeSCRFD(scores, bboxes, 32, 0.5, 0.5, 64, 64)

	require.Len(t, boxes, 1)
	assert.Equal(t, 0, boxes[0].X)
	assert.Equal(t, 0, boxes[0].Y)
	assert.Equal(t, 16, boxes[0].Width)
	assert.Equal(t, 32, boxes[0].Height)
}

func TestDecodeSCRFD_ShortOutputs(t *testing.T) {
	assert.NotPanics(t, func() {
		boxes := decodeSCRFD([][]float32{{0.9}}, [][]float32{{1}}, 32, 0.5, 1, 32, 32)
		assert.Empty(t, boxes)
	})
}
