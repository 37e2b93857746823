package capture

import (
	"github.com/pkg/errors"

	"roadvision/internal/config"
)

// NewCamera builds and starts the streamer for the configured device,
// scaled straight to the inference size.
func NewCamera(cfg *config.Config) (*CameraSource, error) {
	device := cfg.GetDeviceID()
	if device == "" {
		return nil, errors.New("no camera selected")
	}

	w, h := cfg.GetInferenceSize()
	fps := cfg.GetPlaybackFPS()

	return StartCamera(NewFFmpegWebcam(device, fps, w, h), float64(fps))
}
