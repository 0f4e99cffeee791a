package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte("person\r\nbicycle\r\ncar\r\n\r\n"), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)

	assert.Equal(t, Labels{"person", "bicycle", "car"}, labels)

	idx, err := labels.Index("car")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestLoadLabels_Missing(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "absent.names"))
	assert.Error(t, err)
}

func TestLabels_Index(t *testing.T) {
	labels := ParseLabels("bicycle\nperson\nperson\n")

	idx, err := labels.Index("person")
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "first occurrence wins")

	_, err = labels.Index("drone")
	assert.ErrorIs(t, err, ErrLabelNotFound)
}

func TestLabels_Name(t *testing.T) {
	labels := ParseLabels("person\ncar")

	assert.Equal(t, "car", labels.Name(1))
	assert.Equal(t, "class 7", labels.Name(7))
	assert.Equal(t, "class -1", labels.Name(-1))
}
