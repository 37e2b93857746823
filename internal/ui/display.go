package ui

import (
	"context"
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"roadvision/internal/logger"
)

// Display is the pipeline's sink: a single canvas that shows either the
// latest frame or plays back a processed sequence.
type Display struct {
	canvas *canvas.Image
	log    *logger.Logger

	// fallbackFPS is used for sequences whose source reported no rate.
	fallbackFPS func() uint

	mu       sync.Mutex
	playback chan struct{}

	// paint puts a frame on the canvas. UI goroutine only.
	paint func(frame image.Image)
}

func NewDisplay(log *logger.Logger, fallbackFPS func() uint) *Display {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(480, 480))

	d := &Display{canvas: img, log: log, fallbackFPS: fallbackFPS}
	d.paint = d.set
	return d
}

func (d *Display) Object() fyne.CanvasObject { return d.canvas }

// ShowFrame blocks until the frame is on screen, which paces a streaming
// run to what the UI can draw and keeps input handling responsive.
func (d *Display) ShowFrame(frame image.Image) {
	d.showFrame(context.Background(), frame)
}

// ShowSequence plays frames once at fps and returns immediately.
func (d *Display) ShowSequence(frames []image.Image, fps float64) {
	d.showSequence(context.Background(), frames, fps)
}

// Bind returns a sink for one run. Once ctx is done nothing more reaches the
// canvas. Runs are cancelled on the UI goroutine before the view is cleared,
// so checking ctx there keeps a stale run off the next page.
func (d *Display) Bind(ctx context.Context) *RunDisplay {
	return &RunDisplay{ctx: ctx, d: d}
}

func (d *Display) showFrame(ctx context.Context, frame image.Image) {
	d.StopPlayback()
	fyne.DoAndWait(func() {
		if ctx.Err() == nil {
			d.paint(frame)
		}
	})
}

func (d *Display) showSequence(ctx context.Context, frames []image.Image, fps float64) {
	d.StopPlayback()
	if ctx.Err() != nil {
		return
	}

	if len(frames) == 0 {
		d.log.Warnf("No frames to display")
		return
	}

	interval := frameInterval(fps, d.fallbackFPS())
	d.log.Infof("Displaying processed video: %d frames at %.1f FPS", len(frames), float64(time.Second)/float64(interval))

	stop := make(chan struct{})
	d.mu.Lock()
	d.playback = stop
	d.mu.Unlock()

	go d.runPlayerLoop(ctx, frames, interval, stop)
}

func (d *Display) runPlayerLoop(ctx context.Context, frames []image.Image, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < len(frames); {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := frames[i]
			fyne.Do(func() {
				if ctx.Err() == nil {
					d.paint(frame)
				}
			})
			i++
		}
	}
}

func (d *Display) StopPlayback() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playback != nil {
		close(d.playback)
		d.playback = nil
	}
}

// Clear must be called on the UI goroutine.
func (d *Display) Clear() {
	d.StopPlayback()
	d.paint(nil)
}

func (d *Display) set(frame image.Image) {
	d.canvas.Image = frame
	d.canvas.Refresh()
}

func frameInterval(fps float64, fallback uint) time.Duration {
	if fps <= 0 || fps > 240 {
		fps = float64(fallback)
	}
	if fps <= 0 {
		fps = 24
	}
	return time.Duration(float64(time.Second) / fps)
}

// RunDisplay is the Display as seen by a single run.
type RunDisplay struct {
	ctx context.Context
	d   *Display
}

func (r *RunDisplay) ShowFrame(frame image.Image) { r.d.showFrame(r.ctx, frame) }

func (r *RunDisplay) ShowSequence(frames []image.Image, fps float64) {
	r.d.showSequence(r.ctx, frames, fps)
}
