package media

import (
	"image"
	"image/draw"
	"path/filepath"
	"strings"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Exporter persists processed output when the save-results toggle is on.
type Exporter interface {
	SaveImage(name string, img image.Image) (string, error)
	StartVideo(name string, width, height int, fps float64) (FrameWriter, error)
}

type FrameWriter interface {
	WriteFrame(img image.Image) error
	Path() string
	Close() error
}

// DirExporter writes one run's results under <root>/<run id>/.
type DirExporter struct {
	fs    afero.Fs
	dir   string
	runID string

	// newVideo is swapped in tests, encoding video needs ffmpeg on disk.
	newVideo func(path string, width, height int, fps float64) (FrameWriter, error)
}

func NewDirExporter(fs afero.Fs, root string) *DirExporter {
	id := uuid.NewString()
	return &DirExporter{
		fs:       fs,
		dir:      filepath.Join(root, id),
		runID:    id,
		newVideo: newVidioWriter,
	}
}

func (e *DirExporter) Dir() string   { return e.dir }
func (e *DirExporter) RunID() string { return e.runID }

func (e *DirExporter) SaveImage(name string, img image.Image) (string, error) {
	if err := e.fs.MkdirAll(e.dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating %s", e.dir)
	}

	path := filepath.Join(e.dir, resultName(name, ".png"))
	f, err := e.fs.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		return "", errors.Wrapf(err, "encoding %s", path)
	}
	return path, nil
}

func (e *DirExporter) StartVideo(name string, width, height int, fps float64) (FrameWriter, error) {
	if err := e.fs.MkdirAll(e.dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", e.dir)
	}
	return e.newVideo(filepath.Join(e.dir, resultName(name, ".mp4")), width, height, fps)
}

func resultName(name, ext string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "result"
	}
	return base + "_annotated" + ext
}

type vidioWriter struct {
	path   string
	width  int
	height int
	writer *vidio.VideoWriter
	buf    *image.RGBA
}

func newVidioWriter(path string, width, height int, fps float64) (FrameWriter, error) {
	if fps <= 0 {
		fps = 25
	}

	w, err := vidio.NewVideoWriter(path, width, height, &vidio.Options{FPS: fps})
	if err != nil {
		return nil, errors.Wrapf(err, "creating video writer %s", path)
	}

	return &vidioWriter{
		path:   path,
		width:  width,
		height: height,
		writer: w,
		buf:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

func (w *vidioWriter) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return errors.Errorf("frame is %dx%d, writer expects %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	draw.Draw(w.buf, w.buf.Bounds(), img, b.Min, draw.Src)
	return w.writer.Write(w.buf.Pix)
}

func (w *vidioWriter) Path() string { return w.path }

func (w *vidioWriter) Close() error {
	w.writer.Close()
	return nil
}
