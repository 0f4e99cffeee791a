package detector

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrLabelNotFound is returned when a class name is not in the label list.
var ErrLabelNotFound = errors.New("label not found")

// Labels is the ordered class name list of a detector (e.g. coco.names).
type Labels []string

// LoadLabels reads one class name per line. CRLF endings and trailing
// blank lines are tolerated.
func LoadLabels(path string) (Labels, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return ParseLabels(string(b)), nil
}

// ParseLabels splits a names file body into labels.
func ParseLabels(body string) Labels {
	raw := strings.Split(body, "\n")
	for i := range raw {
		raw[i] = strings.TrimRight(raw[i], "\r")
	}
	for len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	return Labels(raw)
}

// Index returns the position of name in the list.
func (l Labels) Index(name string) (int, error) {
	for i, label := range l {
		if label == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q among %d classes", ErrLabelNotFound, name, len(l))
}

// Name returns the label for classID, or "class <id>" when out of range.
func (l Labels) Name(classID int) string {
	if classID < 0 || classID >= len(l) {
		return fmt.Sprintf("class %d", classID)
	}
	return l[classID]
}
