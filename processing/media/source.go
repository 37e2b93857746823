// Package media opens the stills and video containers a user picks and
// writes processed results back out.
package media

import (
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Source yields frames in decode order. Next returns io.EOF once the source
// is exhausted; that is the normal terminal state, not a failure.
type Source interface {
	Next() (image.Image, error)
	// FPS is the native frame rate, or 0 when the source has none.
	FPS() float64
	Close() error
}

type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

	ErrUnsupported = errors.New("unsupported file type")
)

func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return KindImage
		}
	}
	for _, e := range VideoExtensions {
		if ext == e {
			return KindVideo
		}
	}
	return KindUnknown
}

// Open picks the decoder from the file extension.
func Open(path string) (Source, error) {
	switch KindOf(path) {
	case KindImage:
		return OpenImage(path)
	case KindVideo:
		return OpenVideo(path)
	}
	return nil, errors.Wrap(ErrUnsupported, path)
}

// Resize scales img to exactly w x h, ignoring aspect ratio, the same way
// the model was trained.
func Resize(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Linear)
}

// ImageSource is a single still presented as a one-frame source.
type ImageSource struct {
	img  image.Image
	done bool
}

func OpenImage(path string) (*ImageSource, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	return &ImageSource{img: img}, nil
}

func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

func (s *ImageSource) Next() (image.Image, error) {
	if s.done || s.img == nil {
		return nil, io.EOF
	}
	s.done = true
	return s.img, nil
}

func (s *ImageSource) FPS() float64 { return 0 }

func (s *ImageSource) Close() error {
	s.img = nil
	return nil
}

// SliceSource replays frames held in memory.
type SliceSource struct {
	frames []image.Image
	fps    float64
	pos    int
}

func NewSliceSource(fps float64, frames ...image.Image) *SliceSource {
	return &SliceSource{frames: frames, fps: fps}
}

func (s *SliceSource) Next() (image.Image, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) FPS() float64 { return s.fps }
func (s *SliceSource) Close() error { return nil }
