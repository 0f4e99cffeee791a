package identity

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrImageUnreadable means the enrollment image could not be loaded.
	ErrImageUnreadable = errors.New("enrollment image unreadable")
	// ErrNoFace means the enrollment image has no detectable face.
	ErrNoFace = errors.New("no face detected in enrollment image")
)

// Enroll computes the reference embedding from the image at path. The first
// located face is used.
func Enroll(path string, locator FaceLocator, embedder Embedder) (Embedding, error) {
	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	emb, err := EnrollImage(img, locator, embedder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return emb, nil
}

// ReadImage loads a color image. The Mat is released when the file cannot be
// decoded; otherwise the caller owns it.
func ReadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrImageUnreadable, path)
	}
	return img, nil
}

// EnrollImage computes the reference embedding from a loaded image.
func EnrollImage(img gocv.Mat, locator FaceLocator, embedder Embedder) (Embedding, error) {
	regions, err := locator.LocateFaces(img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if len(regions) == 0 {
		return nil, ErrNoFace
	}

	emb, err := embedder.Embed(img, regions[0])
	if err != nil {
		return nil, fmt.Errorf("embedding extraction failed: %w", err)
	}
	if len(emb) == 0 {
		return nil, ErrNoFace
	}
	return emb, nil
}
