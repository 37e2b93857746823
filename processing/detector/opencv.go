//go:build gocv

package detector

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"roadvision/internal/models"
)

const (
	ScoreThreshold float32 = 0.25
	NMSThreshold   float32 = 0.45
)

// OpenCVDetector runs an exported YOLO ONNX model through the OpenCV DNN
// module. The net is not safe for concurrent use, calls are serialized.
type OpenCVDetector struct {
	mu      sync.Mutex
	net     gocv.Net
	classes models.Classes
	size    image.Point
}

func NewOpenCVDetector(modelPath string, classes models.Classes, size image.Point) (*OpenCVDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, errors.New("failed to set preferable backend or target")
	}

	return &OpenCVDetector{net: net, classes: classes, size: size}, nil
}

func (d *OpenCVDetector) Infer(ctx context.Context, frame image.Image) (Annotated, error) {
	return Annotating(d.Detect).Infer(ctx, frame)
}

func (d *OpenCVDetector) Detect(ctx context.Context, frame image.Image) ([]models.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, errors.Wrap(err, "converting frame to mat")
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// YOLO exports a [1, 4+classes, candidates] tensor with cx, cy, w, h first.
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}
	rows, candidates := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "reading network output")
	}

	bounds := frame.Bounds()
	sx := float32(bounds.Dx()) / float32(d.size.X)
	sy := float32(bounds.Dy()) / float32(d.size.Y)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)

	for i := 0; i < candidates; i++ {
		best, bestScore := -1, ScoreThreshold
		for c := 4; c < rows; c++ {
			if s := data[c*candidates+i]; s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 {
			continue
		}

		cx, cy := data[i], data[candidates+i]
		w, h := data[2*candidates+i], data[3*candidates+i]

		rect := image.Rect(
			bounds.Min.X+int((cx-w/2)*sx),
			bounds.Min.Y+int((cy-h/2)*sy),
			bounds.Min.X+int((cx+w/2)*sx),
			bounds.Min.Y+int((cy+h/2)*sy),
		)
		boxes = append(boxes, rect)
		scores = append(scores, bestScore)
		classes = append(classes, best)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, ScoreThreshold, NMSThreshold)

	results := make([]models.DetectionResult, 0, len(keep))
	for _, idx := range keep {
		results = append(results, models.DetectionResult{
			Label:      d.classes.Name(classes[idx]),
			Confidence: scores[idx],
			Box:        models.NormalizedBox(boxes[idx], bounds),
		})
	}

	return results, nil
}

func (d *OpenCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
