package capture

import (
	"image"
	"io"

	"github.com/pkg/errors"
)

// CameraSource exposes a running streamer as a pipeline source. It never
// ends on its own unless the device stops delivering; Close stops it.
type CameraSource struct {
	streamer VideoStreamer
	fps      float64
}

func StartCamera(s VideoStreamer, fps float64) (*CameraSource, error) {
	if err := s.Start(); err != nil {
		return nil, errors.Wrap(err, "starting camera")
	}
	return &CameraSource{streamer: s, fps: fps}, nil
}

func (c *CameraSource) Next() (image.Image, error) {
	for {
		select {
		case frame, ok := <-c.streamer.FrameChan():
			if !ok {
				return nil, c.drainError()
			}
			if frame == nil {
				continue
			}
			return frame, nil

		case err, ok := <-c.streamer.ErrorChan():
			if ok && err != nil {
				return nil, err
			}
			if !ok {
				// errors are closed first, frames may still be buffered
				frame, more := <-c.streamer.FrameChan()
				if !more {
					return nil, io.EOF
				}
				if frame != nil {
					return frame, nil
				}
			}
		}
	}
}

func (c *CameraSource) drainError() error {
	if err, ok := <-c.streamer.ErrorChan(); ok && err != nil {
		return err
	}
	return io.EOF
}

func (c *CameraSource) FPS() float64 { return c.fps }

func (c *CameraSource) Close() error {
	c.streamer.Stop()
	return nil
}
