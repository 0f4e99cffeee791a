package identity

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/logger"
)

// FaceLocator finds faces in a frame.
type FaceLocator interface {
	LocateFaces(frame gocv.Mat) ([]FaceRegion, error)
}

// Embedder computes the embedding of one located face. It is called after
// LocateFaces on the same frame.
type Embedder interface {
	Embed(frame gocv.Mat, region FaceRegion) (Embedding, error)
}

// Distance is the Euclidean distance between two embeddings. Vectors of
// different or zero length are infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Classify applies the tolerance rule. The boundary is inclusive: a distance
// equal to tolerance is a match.
func Classify(distance, tolerance float64) MatchResult {
	if distance <= tolerance {
		return MatchResult{Matched: true, Distance: distance, Label: LabelMatch, Color: ColorMatch}
	}
	return MatchResult{Matched: false, Distance: distance, Label: LabelUnknown, Color: ColorUnknown}
}

// Matcher compares every face in a frame against a reference embedding.
type Matcher struct {
	Locator   FaceLocator
	Embedder  Embedder
	Tolerance float64
}

// NewMatcher returns a Matcher; a non-positive tolerance selects DefaultTolerance.
func NewMatcher(locator FaceLocator, embedder Embedder, tolerance float64) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Matcher{Locator: locator, Embedder: embedder, Tolerance: tolerance}
}

// Match returns one result per located face. No faces is an empty result, not
// an error; a face whose embedding fails is skipped.
func (m *Matcher) Match(frame gocv.Mat, reference Embedding) ([]FaceMatch, error) {
	regions, err := m.Locator.LocateFaces(frame)
	if err != nil {
		return nil, fmt.Errorf("locating faces: %w", err)
	}

	matches := make([]FaceMatch, 0, len(regions))
	for _, region := range regions {
		emb, err := m.Embedder.Embed(frame, region)
		if err != nil {
			logger.Log().Debug("skipping face", zap.Any("region", region), zap.Error(err))
			continue
		}
		matches = append(matches, FaceMatch{
			Region: region,
			Result: Classify(Distance(emb, reference), m.Tolerance),
		})
	}
	return matches, nil
}
