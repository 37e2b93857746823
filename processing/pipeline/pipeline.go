// Package pipeline runs the detector over stills, video files and live
// cameras: every frame is resized to the inference size, passed through the
// detector and handed to a display sink in source order.
package pipeline

import (
	"context"
	"image"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"roadvision/internal/logger"
	"roadvision/internal/models"
	"roadvision/processing/detector"
	"roadvision/processing/media"
)

// Sink is where processed output ends up.
type Sink interface {
	// ShowFrame replaces whatever is on screen with frame.
	ShowFrame(frame image.Image)
	// ShowSequence hands over a complete processed video.
	ShowSequence(frames []image.Image, fps float64)
}

// Options are read once at the start of every run.
type Options struct {
	RealTime    bool
	SaveResults bool
}

// Result is the outcome for one frame. When Err is set the detector failed
// and Image is the resized original frame.
type Result struct {
	Index      int
	Image      image.Image
	Detections []models.DetectionResult
	Latency    time.Duration
	Err        error
}

func (r Result) Fallback() bool { return r.Err != nil }

// Report is returned by video runs. Results is only filled in batch mode.
type Report struct {
	Stats
	Results []Result
	Saved   string
}

type Pipeline struct {
	det    detector.Detector
	log    *logger.Logger
	width  int
	height int

	// Open is media.Open unless replaced.
	Open func(path string) (media.Source, error)
	// NewExporter is called once per run that has SaveResults set.
	NewExporter func() media.Exporter
}

func New(det detector.Detector, log *logger.Logger, width, height int) *Pipeline {
	if log == nil {
		log = logger.Default
	}
	return &Pipeline{
		det:    det,
		log:    log,
		width:  width,
		height: height,
		Open:   media.Open,
	}
}

// ProcessFrame resizes frame and runs the detector on it. A detector
// failure becomes a fallback result carrying the resized frame.
func (p *Pipeline) ProcessFrame(ctx context.Context, index int, frame image.Image) Result {
	resized := media.Resize(frame, p.width, p.height)

	start := time.Now()
	out, err := p.det.Infer(ctx, resized)
	latency := time.Since(start)

	if err == nil && (out.Image == nil || out.Image.Bounds().Size() != resized.Bounds().Size()) {
		err = errors.New("detector returned an image of the wrong size")
	}

	if err != nil {
		return Result{Index: index, Image: resized, Latency: latency, Err: err}
	}

	return Result{
		Index:      index,
		Image:      out.Image,
		Detections: out.Detections,
		Latency:    latency,
	}
}

// ProcessImage runs one still through the detector. An unreadable file or a
// done ctx is an error; a detector failure yields the resized original.
func (p *Pipeline) ProcessImage(ctx context.Context, path string, opts Options) (Result, error) {
	src, err := p.Open(path)
	if err != nil {
		p.log.Errorf("Error processing image: %v", err)
		return Result{}, err
	}
	defer src.Close()

	frame, err := src.Next()
	if err != nil {
		if err == io.EOF {
			err = errors.Errorf("%s contains no image", path)
		}
		p.log.Errorf("Error processing image: %v", err)
		return Result{}, err
	}

	p.log.Infof("Running model on image...")
	res := p.ProcessFrame(ctx, 0, frame)
	if err := ctx.Err(); err != nil {
		p.log.Warnf("Image processing stopped")
		return Result{}, err
	}
	if res.Err != nil {
		p.log.Errorf("Error during image processing: %v", res.Err)
	} else {
		p.log.Infof("Image processed: %d detections in %d ms", len(res.Detections), res.Latency.Milliseconds())
	}

	if opts.SaveResults && p.NewExporter != nil {
		if saved, err := p.NewExporter().SaveImage(path, res.Image); err != nil {
			p.log.Warnf("Could not save result: %v", err)
		} else {
			p.log.Infof("Result saved to %s", saved)
		}
	}

	return res, nil
}

// ProcessVideo opens path and runs it through ProcessStream. A source that
// cannot be opened fails the whole run before sink is touched.
func (p *Pipeline) ProcessVideo(ctx context.Context, path string, opts Options, sink Sink) (Report, error) {
	src, err := p.Open(path)
	if err != nil {
		err = errors.Wrap(err, "cannot open video file")
		p.log.Errorf("Error processing video: %v", err)
		return Report{}, err
	}
	p.log.Infof("Video opened: %s", filepath.Base(path))

	return p.ProcessStream(ctx, path, src, opts, sink)
}

// ProcessStream consumes src until it is exhausted or ctx is done, then
// closes it. In real-time mode each frame goes to sink as soon as it is
// processed; otherwise all frames are collected and shown as one sequence.
func (p *Pipeline) ProcessStream(ctx context.Context, name string, src media.Source, opts Options, sink Sink) (Report, error) {
	defer src.Close()

	if opts.RealTime {
		p.log.Infof("Processing video in real-time...")
	} else {
		p.log.Infof("Processing entire video...")
	}

	run := &videoRun{
		p:     p,
		name:  name,
		fps:   src.FPS(),
		opts:  opts,
		stats: newStats(),
	}
	defer run.closeExport()

	var frames []image.Image
	var readErr error

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			run.stats.finish()
			p.log.Warnf("Processing stopped after %d frames", run.stats.Frames)
			return run.report(), err
		}

		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = errors.Wrapf(err, "reading frame %d", index)
			p.log.Errorf("Error processing video: %v", readErr)
			break
		}

		res := p.ProcessFrame(ctx, index, frame)
		if ctx.Err() != nil {
			continue
		}

		if res.Err != nil {
			p.log.Errorf("Error during frame processing: %v", res.Err)
		} else {
			p.log.Infof("Frame %d processed: %d detections", index, len(res.Detections))
		}

		run.stats.record(res)
		run.export(res)

		if opts.RealTime {
			sink.ShowFrame(res.Image)
			continue
		}

		frames = append(frames, res.Image)
		run.results = append(run.results, res)
	}

	run.stats.finish()

	if !opts.RealTime {
		sink.ShowSequence(frames, run.fps)
	}

	run.closeExport()
	p.log.Infof("Video processing complete: %s", run.stats)

	return run.report(), readErr
}

type videoRun struct {
	p    *Pipeline
	name string
	fps  float64
	opts Options

	stats   Stats
	results []Result

	writer    media.FrameWriter
	exportOff bool
	saved     string
}

func (r *videoRun) export(res Result) {
	if !r.opts.SaveResults || r.p.NewExporter == nil || r.exportOff {
		return
	}

	if r.writer == nil {
		b := res.Image.Bounds()
		w, err := r.p.NewExporter().StartVideo(r.name, b.Dx(), b.Dy(), r.fps)
		if err != nil {
			r.p.log.Warnf("Could not save result: %v", err)
			r.exportOff = true
			return
		}
		r.writer = w
	}

	if err := r.writer.WriteFrame(res.Image); err != nil {
		r.p.log.Warnf("Could not save frame %d: %v", res.Index, err)
		r.exportOff = true
	}
}

func (r *videoRun) closeExport() {
	if r.writer == nil {
		return
	}

	path := r.writer.Path()
	if err := r.writer.Close(); err != nil {
		r.p.log.Warnf("Could not finish %s: %v", path, err)
	} else {
		r.saved = path
		r.p.log.Infof("Result saved to %s", path)
	}
	r.writer = nil
}

func (r *videoRun) report() Report {
	return Report{Stats: r.stats, Results: r.results, Saved: r.saved}
}
