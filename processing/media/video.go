package media

import (
	"image"
	"io"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/pkg/errors"
)

// frameReader is the part of *vidio.Video the source reads through.
type frameReader interface {
	Width() int
	Height() int
	FPS() float64
	Frames() int
	SetFrameBuffer(buffer []byte) error
	Read() bool
	Close()
}

// VideoSource decodes a container with ffmpeg through Vidio. Every frame
// gets its own buffer because frames outlive the next Read in batch mode.
//
// Vidio reports a decode failure the same way as the end of the stream, so
// the first frame is read while opening: a file that yields no frame at all
// fails to open instead of looking like an empty video.
type VideoSource struct {
	video frameReader
	first image.Image
}

func OpenVideo(path string) (*VideoSource, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open video file %s", path)
	}
	return newVideoSource(video, path)
}

func newVideoSource(video frameReader, path string) (*VideoSource, error) {
	if video.Width() == 0 || video.Height() == 0 {
		video.Close()
		return nil, errors.Errorf("cannot open video file %s: no video stream", path)
	}

	s := &VideoSource{video: video}
	first, err := s.read()
	if err != nil {
		video.Close()
		if err == io.EOF {
			err = errors.Errorf("cannot decode video file %s: no frames", path)
		}
		return nil, err
	}
	s.first = first
	return s, nil
}

func (s *VideoSource) Next() (image.Image, error) {
	if s.first != nil {
		frame := s.first
		s.first = nil
		return frame, nil
	}
	return s.read()
}

func (s *VideoSource) read() (image.Image, error) {
	w, h := s.video.Width(), s.video.Height()

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := s.video.SetFrameBuffer(frame.Pix); err != nil {
		return nil, errors.Wrap(err, "setting frame buffer")
	}

	if !s.video.Read() {
		return nil, io.EOF
	}
	return frame, nil
}

func (s *VideoSource) FPS() float64 { return s.video.FPS() }

// Frames is the container's frame count estimate.
func (s *VideoSource) Frames() int { return s.video.Frames() }

func (s *VideoSource) Close() error {
	s.video.Close()
	return nil
}
