package detector

// Default thresholds
const (
	DefaultConfThreshold float32 = 0.5
	DefaultNMSThreshold  float32 = 0.4
)

// FilterOptions selects which raw detections become boxes.
type FilterOptions struct {
	ClassID       int
	Label         string
	ConfThreshold float32 // a score must be strictly greater to survive
	NMSThreshold  float32 // boxes overlapping a stronger box by more than this are dropped
}

// DefaultFilterOptions returns options for classID with the default thresholds.
func DefaultFilterOptions(classID int, label string) FilterOptions {
	return FilterOptions{
		ClassID:       classID,
		Label:         label,
		ConfThreshold: DefaultConfThreshold,
		NMSThreshold:  DefaultNMSThreshold,
	}
}

// Filter turns raw detector rows into labeled pixel boxes: it keeps rows whose
// best class is opts.ClassID with a score above the confidence threshold,
// scales them to the frame, and applies NMS. It never draws.
func Filter(raw []RawDetection, frameWidth, frameHeight int, opts FilterOptions) []BoundingBox {
	candidates := make([]BoundingBox, 0, len(raw))

	for _, det := range raw {
		classID, score, ok := det.BestClass()
		if !ok || !det.valid() {
			continue
		}
		if classID != opts.ClassID || score <= opts.ConfThreshold {
			continue
		}

		box := denormalize(det, frameWidth, frameHeight)
		box.Confidence = float64(score) * 100
		box.ClassID = classID
		box.Label = opts.Label
		candidates = append(candidates, box)
	}

	kept := NMS(candidates, float64(opts.NMSThreshold))
	boxes := make([]BoundingBox, 0, len(kept))
	for _, i := range kept {
		boxes = append(boxes, candidates[i])
	}
	return boxes
}

// denormalize converts center-relative fractions to an integer top-left box.
// Every step truncates toward zero.
func denormalize(det RawDetection, frameWidth, frameHeight int) BoundingBox {
	w, h := float64(frameWidth), float64(frameHeight)

	centerX := int(float64(det.CenterX) * w)
	centerY := int(float64(det.CenterY) * h)
	width := int(float64(det.Width) * w)
	height := int(float64(det.Height) * h)

	return BoundingBox{
		X:      int(float64(centerX) - float64(width)/2),
		Y:      int(float64(centerY) - float64(height)/2),
		Width:  width,
		Height: height,
	}
}
