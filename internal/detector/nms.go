package detector

import "sort"

// NMS performs greedy Non-Maximum Suppression and returns the indices of the
// kept boxes, highest confidence first. Equal confidences keep their input order.
func NMS(boxes []BoundingBox, iouThreshold float64) []int {
	if len(boxes) == 0 {
		return nil
	}

	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return boxes[order[i]].Confidence > boxes[order[j]].Confidence
	})

	keep := make([]bool, len(order))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(order); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(order); j++ {
			if !keep[j] {
				continue
			}
			if IoU(boxes[order[i]], boxes[order[j]]) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := make([]int, 0, len(order))
	for i, idx := range order {
		if keep[i] {
			result = append(result, idx)
		}
	}

	return result
}

// IoU calculates Intersection over Union of two boxes
func IoU(a, b BoundingBox) float64 {
	// Intersection
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	if x1 >= x2 || y1 >= y2 {
		return 0
	}

	intersection := float64((x2 - x1) * (y2 - y1))
	union := float64(a.Area()+b.Area()) - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}
