//go:build matprofile

package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// Run with -tags matprofile to count live Mats.
func TestReadImage_ReleasesUnreadable(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))

	before := gocv.MatProfile.Count()
	_, err := ReadImage(garbage)
	assert.ErrorIs(t, err, ErrImageUnreadable)
	_, err = Enroll(garbage, fakeLocator{}, fakeEmbedder{})
	assert.ErrorIs(t, err, ErrImageUnreadable)
	assert.Equal(t, before, gocv.MatProfile.Count())
}
