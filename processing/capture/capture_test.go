package capture_test

import (
	"errors"
	"image"
	"io"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/matryer/is"

	"roadvision/processing/capture"
)

type fakeStreamer struct {
	frames   chan image.Image
	errs     chan error
	startErr error
	stopped  bool
}

func newFakeStreamer(buffered int) *fakeStreamer {
	return &fakeStreamer{
		frames: make(chan image.Image, buffered),
		errs:   make(chan error, 1),
	}
}

func (f *fakeStreamer) Start() error                  { return f.startErr }
func (f *fakeStreamer) Stop()                         { f.stopped = true }
func (f *fakeStreamer) FrameChan() <-chan image.Image { return f.frames }
func (f *fakeStreamer) ErrorChan() <-chan error       { return f.errs }

func (f *fakeStreamer) finish(err error) {
	if err != nil {
		f.errs <- err
	}
	close(f.errs)
	close(f.frames)
}

func TestCameraSourceDeliversFramesThenEOF(t *testing.T) {
	is := is.New(t)

	fake := newFakeStreamer(3)
	a := image.NewRGBA(image.Rect(0, 0, 4, 4))
	b := image.NewRGBA(image.Rect(0, 0, 4, 4))
	fake.frames <- a
	fake.frames <- nil
	fake.frames <- b
	fake.finish(nil)

	src, err := capture.StartCamera(fake, 24)
	is.NoErr(err)

	got, err := src.Next()
	is.NoErr(err)
	is.Equal(got, a)

	got, err = src.Next()
	is.NoErr(err)
	is.Equal(got, b)

	_, err = src.Next()
	is.Equal(err, io.EOF)

	is.Equal(src.FPS(), 24.0)
	is.NoErr(src.Close())
	is.True(fake.stopped)
}

func TestCameraSourceReportsReadError(t *testing.T) {
	is := is.New(t)

	fake := newFakeStreamer(0)
	boom := errors.New("camera read error")
	fake.finish(boom)

	src, err := capture.StartCamera(fake, 24)
	is.NoErr(err)

	_, err = src.Next()
	is.Equal(err, boom)
}

func TestStartCameraFailure(t *testing.T) {
	is := is.New(t)

	fake := newFakeStreamer(0)
	fake.startErr = errors.New("no such device")

	_, err := capture.StartCamera(fake, 24)
	is.True(err != nil)
}

func TestWebcamArgs(t *testing.T) {
	is := is.New(t)

	linux := capture.WebcamArgs("linux", "/dev/video0", 24, 640, 640)
	is.Equal(linux[:4], []string{"-f", "v4l2", "-i", "/dev/video0"})
	is.Equal(linux[4:6], []string{"-vf", "fps=24,scale=640:640"})
	is.Equal(linux[len(linux)-1], "-")

	windows := capture.WebcamArgs("windows", "USB Camera", 30, 320, 240)
	is.Equal(windows[:4], []string{"-f", "dshow", "-i", "video=USB Camera"})
}

func TestParseDshowDevices(t *testing.T) {
	is := is.New(t)

	out := `[dshow @ 0x1] "USB Camera" (video)
[dshow @ 0x1] "Microphone" (audio)
[dshow @ 0x1] "USB Camera" (video)
[dshow @ 0x1] "OBS Virtual Camera" (video)`

	is.Equal(capture.ParseDshowDevices(out), []string{"USB Camera", "OBS Virtual Camera"})
	is.Equal(len(capture.ParseDshowDevices("")), 0)
}

func TestListCamerasLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("device glob is linux only")
	}
	is := is.New(t)

	defer capture.OverrideDeviceGlob(func() ([]string, error) {
		return []string{"/dev/video2", "/dev/video0"}, nil
	})()

	cams, err := capture.ListCameras()
	is.NoErr(err)
	is.Equal(cams, []string{"/dev/video0", "/dev/video2"})
}

// fakeFFmpeg swaps ffmpeg for a stand-in command for the test's duration.
func fakeFFmpeg(t *testing.T, name string, args ...string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
	restore := capture.OverrideCommand(func(string, ...string) *exec.Cmd {
		return exec.Command(name, args...)
	})
	t.Cleanup(restore)
}

func drained(ws *capture.FFmpegWebcamStreamer) (frames int, errs []error, ok bool) {
	timeout := time.After(3 * time.Second)
	frameChan, errChan := ws.FrameChan(), ws.ErrorChan()
	for frameChan != nil || errChan != nil {
		select {
		case _, open := <-frameChan:
			if !open {
				frameChan = nil
				continue
			}
			frames++
		case err, open := <-errChan:
			if !open {
				errChan = nil
				continue
			}
			errs = append(errs, err)
		case <-timeout:
			return frames, errs, false
		}
	}
	return frames, errs, true
}

func TestWebcamStopEndsStreamQuietly(t *testing.T) {
	fakeFFmpeg(t, "sleep", "10")
	is := is.New(t)

	ws := capture.NewFFmpegWebcam("/dev/video0", 30, 2, 2)
	is.NoErr(ws.Start())

	ws.Stop()
	ws.Stop()

	frames, errs, ok := drained(ws)
	is.True(ok)
	is.Equal(frames, 0)
	is.Equal(len(errs), 0)
}

func TestWebcamProcessExitReportsError(t *testing.T) {
	fakeFFmpeg(t, "true")
	is := is.New(t)

	ws := capture.NewFFmpegWebcam("/dev/video0", 30, 2, 2)
	is.NoErr(ws.Start())

	_, errs, ok := drained(ws)
	is.True(ok)
	is.Equal(len(errs), 1)

	ws.Stop()
}
