package identity

import (
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/logger"
)

const (
	chipSize    = 150
	chipPadding = 0.25
)

// EngineOptions configures the dlib face engine.
type EngineOptions struct {
	ModelsDir string // shape predictor, resnet and (for CNN) mmod models
	CNN       bool   // use the CNN detector instead of HOG
	Jitter    int    // descriptor jittering; 0 disables
}

// FaceEngine locates and embeds faces with dlib through go-face. It serves as
// both FaceLocator and Embedder: LocateFaces computes descriptors for every
// face in the frame and Embed answers from that cache.
type FaceEngine struct {
	rec  *face.Recognizer
	opts EngineOptions

	mu    sync.Mutex
	cache map[image.Rectangle]face.Descriptor
}

// NewFaceEngine loads the dlib models from opts.ModelsDir.
func NewFaceEngine(opts EngineOptions) (*FaceEngine, error) {
	rec, err := face.NewRecognizerWithConfig(opts.ModelsDir, chipSize, chipPadding, opts.Jitter)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", opts.ModelsDir, err)
	}
	logger.Log().Info("face engine ready",
		zap.String("models", opts.ModelsDir),
		zap.Bool("cnn", opts.CNN),
		zap.Int("jitter", opts.Jitter),
	)

	return &FaceEngine{
		rec:   rec,
		opts:  opts,
		cache: make(map[image.Rectangle]face.Descriptor),
	}, nil
}

// LocateFaces finds every face in frame.
func (e *FaceEngine) LocateFaces(frame gocv.Mat) ([]FaceRegion, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	jpeg, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	var faces []face.Face
	if e.opts.CNN {
		faces, err = e.rec.RecognizeCNN(jpeg)
	} else {
		faces, err = e.rec.Recognize(jpeg)
	}
	if err != nil {
		return nil, fmt.Errorf("face recognition failed: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)

	regions := make([]FaceRegion, 0, len(faces))
	for _, f := range faces {
		e.cache[f.Rectangle] = f.Descriptor
		regions = append(regions, RegionFromRect(f.Rectangle))
	}
	return regions, nil
}

// Embed returns the descriptor of region. Regions not produced by the last
// LocateFaces call are cropped and recognized on their own.
func (e *FaceEngine) Embed(frame gocv.Mat, region FaceRegion) (Embedding, error) {
	e.mu.Lock()
	d, ok := e.cache[region.Rect()]
	e.mu.Unlock()
	if ok {
		return descriptorEmbedding(d), nil
	}

	// dlib needs context around a tight box to find the face again
	r := region.Rect()
	margin := image.Pt(r.Dx()/4, r.Dy()/4)
	r = image.Rectangle{Min: r.Min.Sub(margin), Max: r.Max.Add(margin)}
	rect := r.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return nil, fmt.Errorf("face region %v outside frame", region.Rect())
	}

	crop := frame.Region(rect)
	defer crop.Close()

	jpeg, err := encodeJPEG(crop)
	if err != nil {
		return nil, err
	}

	var f *face.Face
	if e.opts.CNN {
		f, err = e.rec.RecognizeSingleCNN(jpeg)
	} else {
		f, err = e.rec.RecognizeSingle(jpeg)
	}
	if err != nil {
		return nil, fmt.Errorf("face recognition failed: %w", err)
	}
	if f == nil {
		return nil, ErrNoFace
	}
	return descriptorEmbedding(f.Descriptor), nil
}

// Close releases the dlib models.
func (e *FaceEngine) Close() error {
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}

func descriptorEmbedding(d face.Descriptor) Embedding {
	emb := make(Embedding, len(d))
	copy(emb, d[:])
	return emb
}

func encodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
