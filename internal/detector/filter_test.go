package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personClass = 0

// person returns a raw detection whose best class is person with the given score.
func person(score float32, cx, cy, w, h float32) RawDetection {
	return RawDetection{
		CenterX: cx, CenterY: cy, Width: w, Height: h,
		Objectness: 1,
		Scores:     []float32{score, 0.01, 0.02},
	}
}

func TestFilter_EndToEnd(t *testing.T) {
	raw := []RawDetection{person(0.95, 0.5, 0.5, 0.2, 0.3)}

	boxes := Filter(raw, 960, 720, DefaultFilterOptions(personClass, "person"))

	require.Len(t, boxes, 1)
	box := boxes[0]
	assert.Equal(t, 384, box.X)
	assert.Equal(t, 252, box.Y)
	assert.Equal(t, 192, box.Width)
	assert.Equal(t, 216, box.Height)
	assert.InDelta(t, 95.0, box.Confidence, 1e-4)
	assert.Equal(t, personClass, box.ClassID)
	assert.Equal(t, "Person 95.0%", box.Caption())
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, 960, 720, DefaultFilterOptions(personClass, "person")))
	assert.Empty(t, Filter([]RawDetection{}, 960, 720, DefaultFilterOptions(personClass, "person")))
}

func TestFilter_ConfidenceBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold float32
		score     float32
		survives  bool
	}{
		{name: "above default", threshold: 0.5, score: 0.51, survives: true},
		{name: "exactly at default", threshold: 0.5, score: 0.5, survives: false},
		{name: "below default", threshold: 0.5, score: 0.49, survives: false},
		{name: "exactly at custom", threshold: 0.75, score: 0.75, survives: false},
		{name: "just above custom", threshold: 0.75, score: 0.7501, survives: true},
		{name: "low threshold", threshold: 0.1, score: 0.2, survives: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultFilterOptions(personClass, "person")
			opts.ConfThreshold = tt.threshold

			boxes := Filter([]RawDetection{person(tt.score, 0.5, 0.5, 0.1, 0.1)}, 100, 100, opts)

			if tt.survives {
				assert.Len(t, boxes, 1)
			} else {
				assert.Empty(t, boxes)
			}
		})
	}
}

func TestFilter_ClassOfInterest(t *testing.T) {
	car := RawDetection{
		CenterX: 0.5, CenterY: 0.5, Width: 0.1, Height: 0.1,
		Scores: []float32{0.3, 0.9, 0.1},
	}
	// person score above threshold but not the argmax
	mixed := RawDetection{
		CenterX: 0.2, CenterY: 0.2, Width: 0.1, Height: 0.1,
		Scores: []float32{0.6, 0.7, 0.1},
	}
	// tie between person and class 2: first maximum wins
	tied := RawDetection{
		CenterX: 0.8, CenterY: 0.8, Width: 0.1, Height: 0.1,
		Scores: []float32{0.8, 0.1, 0.8},
	}

	boxes := Filter([]RawDetection{car, mixed, tied}, 100, 100, DefaultFilterOptions(personClass, "person"))

	require.Len(t, boxes, 1)
	assert.Equal(t, 75, boxes[0].X)
}

func TestFilter_SkipsMalformed(t *testing.T) {
	raw := []RawDetection{
		{CenterX: 0.5, CenterY: 0.5, Width: 0.1, Height: 0.1},
		person(0.9, 0.5, 0.5, 0.2, 0.2),
	}

	boxes := Filter(raw, 100, 100, DefaultFilterOptions(personClass, "person"))
	assert.Len(t, boxes, 1)
}

func TestFilter_SuppressesOverlaps(t *testing.T) {
	raw := []RawDetection{
		person(0.5001, 0.5, 0.5, 0.2, 0.3),
		person(0.9, 0.5, 0.5, 0.2, 0.3),
		person(0.8, 0.1, 0.1, 0.1, 0.1),
	}

	boxes := Filter(raw, 960, 720, DefaultFilterOptions(personClass, "person"))

	require.Len(t, boxes, 2)
	assert.InDelta(t, 90.0, boxes[0].Confidence, 1e-4)
	assert.InDelta(t, 80.0, boxes[1].Confidence, 1e-4)
}

func TestDenormalize_TruncatesTowardZero(t *testing.T) {
	// box hanging off the top-left corner: 0.05*100=5, 0.3*100=30, 5-15=-10
	box := denormalize(RawDetection{CenterX: 0.05, CenterY: 0.05, Width: 0.3, Height: 0.3}, 100, 100)
	assert.Equal(t, -10, box.X)
	assert.Equal(t, -10, box.Y)

	// odd width: center 42, width 21, 42-10.5=31.5 -> 31
	box = denormalize(RawDetection{CenterX: 0.5, CenterY: 0.5, Width: 0.25, Height: 0.25}, 84, 84)
	assert.Equal(t, 21, box.Width)
	assert.Equal(t, 31, box.X)
}

func TestBestClass(t *testing.T) {
	id, score, ok := RawDetection{Scores: []float32{0.1, 0.7, 0.7, 0.2}}.BestClass()
	assert.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, float32(0.7), score)

	_, _, ok = RawDetection{}.BestClass()
	assert.False(t, ok)
}
