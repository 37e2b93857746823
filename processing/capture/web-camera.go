package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"roadvision/internal/logger"
)

const (
	bytesPerPixel = 4
	standardFps   = 30
)

var execCommand = exec.Command

type FFmpegWebcamStreamer struct {
	stopOnce sync.Once

	deviceName string
	width      int
	height     int
	targetFPS  uint

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error

	stopChan chan struct{}
}

func NewFFmpegWebcam(deviceName string, targetFps uint, scaledWidth int, scaledHeight int) *FFmpegWebcamStreamer {
	if targetFps == 0 {
		targetFps = standardFps
	}

	return &FFmpegWebcamStreamer{
		deviceName: deviceName,
		width:      scaledWidth,
		height:     scaledHeight,
		targetFPS:  targetFps,

		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

// webcamArgs asks ffmpeg for raw RGBA frames already scaled to the
// inference size.
func webcamArgs(goos, device string, fps uint, width, height int) []string {
	input := []string{"-f", "v4l2", "-i", device}
	switch goos {
	case "windows":
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	case "darwin":
		input = []string{"-f", "avfoundation", "-framerate", fmt.Sprint(fps), "-i", device}
	}

	return append(input,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func (ws *FFmpegWebcamStreamer) Start() error {
	ws.cmd = execCommand("ffmpeg", webcamArgs(runtime.GOOS, ws.deviceName, ws.targetFPS, ws.width, ws.height)...)
	ws.cmd.Stderr = &ws.stderr

	stdout, err := ws.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "ffmpeg stdout")
	}

	if err := ws.cmd.Start(); err != nil {
		return errors.Wrapf(err, "ffmpeg start error, details: %s", ws.stderr.String())
	}

	logger.Debug("camera %s streaming at %dx%d@%d", ws.deviceName, ws.width, ws.height, ws.targetFPS)
	go ws.readLoop(stdout)

	return nil
}

func (ws *FFmpegWebcamStreamer) readLoop(stdout io.ReadCloser) {
	defer close(ws.frameChan)
	defer close(ws.errChan)
	defer stdout.Close()
	defer ws.stopCmdOut()

	frameSize := ws.width * ws.height * bytesPerPixel

	for {
		select {
		case <-ws.stopChan:
			return

		default:
			pixelData := make([]byte, frameSize)
			_, err := io.ReadFull(stdout, pixelData)
			if err != nil {
				select {
				case <-ws.stopChan:
					return
				default:
					ws.errChan <- errors.Errorf("camera read error: %v", err)
					return
				}
			}

			img := &image.RGBA{
				Pix:    pixelData,
				Stride: ws.width * bytesPerPixel,
				Rect:   image.Rect(0, 0, ws.width, ws.height),
			}

			// drop the frame if the consumer is still busy with the last one
			select {
			case ws.frameChan <- img:
			default:
			}
		}
	}
}

// stopCmdOut reaps ffmpeg. Only readLoop calls it, so Wait runs once.
func (ws *FFmpegWebcamStreamer) stopCmdOut() {
	if ws.cmd != nil && ws.cmd.Process != nil {
		ws.cmd.Process.Kill()
		ws.cmd.Wait()
	}
}

// Stop kills ffmpeg, which unblocks readLoop and lets it reap the process.
func (ws *FFmpegWebcamStreamer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.stopChan)
		if ws.cmd != nil && ws.cmd.Process != nil {
			ws.cmd.Process.Kill()
		}
	})
}

func (ws *FFmpegWebcamStreamer) FrameChan() <-chan image.Image { return ws.frameChan }
func (ws *FFmpegWebcamStreamer) ErrorChan() <-chan error       { return ws.errChan }

var dshowDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// parseDshowDevices extracts unique video device names from
// `ffmpeg -list_devices true -f dshow` output.
func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)
	for _, m := range dshowDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}

var globVideoDevices = func() ([]string, error) {
	return filepath.Glob("/dev/video*")
}

func ListCameras() ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.Run()

		return parseDshowDevices(stderr.String()), nil

	case "darwin":
		return []string{"0"}, nil
	}

	devices, err := globVideoDevices()
	if err != nil {
		return nil, errors.Wrap(err, "listing video devices")
	}
	sort.Strings(devices)
	return devices, nil
}
